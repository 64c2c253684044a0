//go:build ignore

// sign-in.go - Sign in to a running credits API with a local wallet key
//
// Usage:
//   go run scripts/sign-in.go -api http://localhost:8081 -key <hex private key>
//
// Without -key a throwaway wallet is generated. The session token is printed
// so it can be used as: curl -H "Authorization: Bearer $TOKEN" ...

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	apiURL  = flag.String("api", "http://localhost:8081", "Credits API base URL")
	keyHex  = flag.String("key", "", "Hex-encoded secp256k1 private key (optional)")
	chainID = flag.Int64("chain-id", 8453, "Chain ID written into the sign-in message")
)

func main() {
	flag.Parse()

	key, err := crypto.GenerateKey()
	if *keyHex != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(*keyHex, "0x"))
	}
	if err != nil {
		fail("invalid key: %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	base, err := url.Parse(*apiURL)
	if err != nil {
		fail("invalid api url: %v", err)
	}

	var challenge struct {
		Nonce string `json:"nonce"`
	}
	post(*apiURL+"/auth/nonce", map[string]string{"address": address}, &challenge)

	message := strings.Join([]string{
		base.Host + " wants you to sign in with your Ethereum account:",
		address,
		"",
		"Sign in to read comics.",
		"",
		"URI: " + *apiURL,
		"Version: 1",
		fmt.Sprintf("Chain ID: %d", *chainID),
		"Nonce: " + challenge.Nonce,
		"Issued At: " + time.Now().UTC().Format(time.RFC3339),
	}, "\n")

	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		fail("sign: %v", err)
	}
	sig[64] += 27

	var session struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
		User      struct {
			ID      int64 `json:"id"`
			Credits int64 `json:"credits"`
		} `json:"user"`
	}
	post(*apiURL+"/auth/verify", map[string]string{"message": message, "signature": hexutil.Encode(sig)}, &session)

	fmt.Printf("Wallet:     %s\n", address)
	fmt.Printf("User ID:    %d\n", session.User.ID)
	fmt.Printf("Credits:    %d\n", session.User.Credits)
	fmt.Printf("Expires at: %s\n", session.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("TOKEN=%s\n", session.Token)
}

func post(endpoint string, body, out any) {
	payload, err := json.Marshal(body)
	if err != nil {
		fail("encode: %v", err)
	}
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		fail("POST %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		fail("POST %s: %d %s", endpoint, resp.StatusCode, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fail("decode %s: %v", endpoint, err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
