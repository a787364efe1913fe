// cmd/tokengen/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/unclebandit/ngo-backoffice/internal/auth"
	"github.com/unclebandit/ngo-backoffice/internal/config"
)

// tokengen prints a signed bearer token for the admin API.
func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	subject := flag.String("sub", "admin", "token subject")
	name := flag.String("name", "", "display name stored in audit columns")
	role := flag.String("role", auth.RoleAdmin, "role claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to jwt.ttl)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lifetime := cfg.JWT.TTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.GenerateToken(auth.Principal{Subject: *subject, Name: *name, Role: *role}, cfg.JWT.Secret, lifetime)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
	fmt.Printf("# expires %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
