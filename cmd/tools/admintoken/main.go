// Command admintoken mints a bearer token for the administration API using
// the JWT settings of the running environment.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/storeengine/internal/app"
	"github.com/noah-isme/storeengine/internal/auth"
	"github.com/noah-isme/storeengine/internal/config"
)

func main() {
	subject := flag.String("sub", "admin", "token subject")
	scopes := flag.String("scopes", app.AdminScope, "comma separated scopes")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	v := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, 0)
	token, err := v.Issue(*subject, strings.Split(*scopes, ","), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
