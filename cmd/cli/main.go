// Command acl is a CLI client for the Authentic Caller service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "authentic-caller")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "authentic-caller")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp from a JWT without verifying it; the server does that.
func tokenExpiry(tok string, fallback time.Duration) time.Time {
	var claims jwt.RegisteredClaims
	_, _, _ = jwt.NewParser().ParseUnverified(tok, &claims)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(fallback)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printData pretty-prints the data field of a reply, or its message.
func printData(resp *apiResponse) {
	if len(resp.Data) > 0 {
		var v any
		if json.Unmarshal(resp.Data, &v) == nil {
			printJSON(v)
			return
		}
	}
	if resp.Message != "" {
		fmt.Println(resp.Message)
		return
	}
	fmt.Println("ok")
}

func usage() {
	fmt.Fprintf(os.Stderr, `acl CLI
Usage:
  acl -addr URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  register        -name <name> -phone <10 digits> [-email <addr>] -p <password>   (saves token)
  login           (-email <addr> | -phone <digits>) -p <password>                 (saves token)
  send-otp        (-email <addr> | -phone <digits>)
  verify-otp      (-email <addr> | -phone <digits>) -code <4 digits>
  reset-password  (-email <addr> | -phone <digits>) -p <password>
  search          <name fragment | phone>
  user            -id <n>
  report          -id <n>
  upload          -file <contacts.csv | ->
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// identityFlags registers -email and -phone on fs.
func identityFlags(fs *flag.FlagSet) *identity {
	id := &identity{}
	fs.StringVar(&id.Email, "email", "", "account email")
	fs.StringVar(&id.Phone, "phone", "", "account phone")
	return id
}

func needIdentity(id *identity) {
	if id.Email == "" && id.Phone == "" {
		fmt.Fprintln(os.Stderr, "need -email or -phone")
		os.Exit(1)
	}
}

// main dispatches subcommands against the HTTP API.
func main() {
	// global flags
	addr := flag.String("addr", "http://localhost:3000", "server base URL")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	anon := func() *client {
		c, err := newClient(*addr, *caPath, *insecure, "")
		if err != nil {
			fail(err)
		}
		return c
	}
	authed := func() *client {
		token, err := loadToken()
		if err != nil {
			fail(err)
		}
		c, err := newClient(*addr, *caPath, *insecure, token)
		if err != nil {
			fail(err)
		}
		return c
	}

	switch cmd {

	case "version":
		fmt.Printf("acl %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		phone := fs.String("phone", "", "10 digit phone")
		email := fs.String("email", "", "email (optional)")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *name == "" || *phone == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -name, -phone and -p")
			os.Exit(1)
		}
		resp, err := anon().register(ctx, *name, *phone, *email, *p)
		if err != nil {
			fail(err)
		}
		if err := saveToken(resp.Token, tokenExpiry(resp.Token, time.Hour)); err != nil {
			fail(err)
		}
		printData(resp)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		id := identityFlags(fs)
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		needIdentity(id)
		resp, err := anon().login(ctx, *id, *p)
		if err != nil {
			fail(err)
		}
		if err := saveToken(resp.Token, tokenExpiry(resp.Token, time.Hour)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "send-otp":
		fs := flag.NewFlagSet("send-otp", flag.ExitOnError)
		id := identityFlags(fs)
		_ = fs.Parse(args)
		needIdentity(id)
		resp, err := anon().sendOTP(ctx, *id)
		if err != nil {
			fail(err)
		}
		printData(resp)

	case "verify-otp":
		fs := flag.NewFlagSet("verify-otp", flag.ExitOnError)
		id := identityFlags(fs)
		code := fs.String("code", "", "one-time code")
		_ = fs.Parse(args)
		needIdentity(id)
		resp, err := anon().verifyOTP(ctx, *id, *code)
		if err != nil {
			fail(err)
		}
		printData(resp)

	case "reset-password":
		fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
		id := identityFlags(fs)
		p := fs.String("p", "", "new password")
		_ = fs.Parse(args)
		needIdentity(id)
		resp, err := anon().resetPassword(ctx, *id, *p)
		if err != nil {
			fail(err)
		}
		printData(resp)

	case "search":
		q := strings.TrimSpace(strings.Join(args, " "))
		if q == "" {
			fmt.Fprintln(os.Stderr, "need a query")
			os.Exit(1)
		}
		resp, err := authed().search(ctx, q)
		if err != nil {
			fail(err)
		}
		printData(resp)

	case "user", "report":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		raw := fs.String("id", "", "record id")
		_ = fs.Parse(args)
		id, err := strconv.ParseInt(*raw, 10, 64)
		if err != nil || id <= 0 {
			fmt.Fprintln(os.Stderr, "need a positive -id")
			os.Exit(1)
		}
		c := authed()
		var resp *apiResponse
		if cmd == "user" {
			resp, err = c.user(ctx, id)
		} else {
			resp, err = c.reportSpam(ctx, id)
		}
		if err != nil {
			fail(err)
		}
		printData(resp)

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ExitOnError)
		file := fs.String("file", "", "CSV path or - for stdin")
		_ = fs.Parse(args)
		if *file == "" {
			fmt.Fprintln(os.Stderr, "need -file")
			os.Exit(1)
		}
		b, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		name := filepath.Base(*file)
		if *file == "-" {
			name = "contacts.csv"
		}
		resp, err := authed().upload(ctx, name, bytes.NewReader(b))
		if err != nil {
			fail(err)
		}
		printData(resp)

	default:
		usage()
	}
}

// ---- helpers ----

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: code=%d msg=%s\n", ae.Code, ae.Msg)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
