// Command token prints operator credentials: a signed API token, a fresh
// random secret, or an "enc:" credential value for the environment.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	config "github.com/maheshrc27/postcadence/configs"
	"github.com/maheshrc27/postcadence/pkg/utils"
)

func main() {
	operator := flag.String("operator", "operator", "name recorded in the token")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	secret := flag.Int("new-secret", 0, "print a random secret of this many bytes and exit")
	encrypt := flag.String("encrypt", "", "encrypt a credential with SECRET_KEY and print it as enc:...")
	flag.Parse()

	if *secret > 0 {
		s, err := utils.GenerateSecret(*secret)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(s)
		return
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *encrypt != "" {
		sealed, err := utils.Encrypt([]byte(*encrypt), utils.DeriveKey(cfg.SecretKey))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("enc:" + sealed)
		return
	}

	token, err := utils.GenerateToken(cfg.SecretKey, *operator, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
