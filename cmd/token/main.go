// Command token mints a staff access token for the booking API.  Staff
// accounts live in an external identity system; this tool covers local
// development and operations scripts.
//
//	go run ./cmd/token -sub 17 -role staff -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iliyamo/appointment-booking/internal/logging"
	"github.com/iliyamo/appointment-booking/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "staff id placed in the sub claim")
	role := flag.String("role", "staff", "role claim: staff or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	log := logging.New("info", "text")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" || *sub == "" {
		log.Fatal("JWT_SECRET and -sub are required")
	}
	tok, err := utils.NewAccessToken(secret, *sub, *role, *ttl)
	if err != nil {
		log.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok.Token)
	log.WithField("expires_at", tok.Exp.Format(time.RFC3339)).Info("token issued")
}
