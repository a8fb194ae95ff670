package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/alovak/mini-authorizer/authorizer/models"
	"github.com/alovak/mini-authorizer/internal/authclient"
	"github.com/alovak/mini-authorizer/internal/pan"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var (
	flagBase     = flag.String("base", "http://127.0.0.1:8080", "authorizer base URL")
	flagUser     = flag.String("user", "", "API user (defaults to API_USER)")
	flagPassword = flag.String("password", "", "API password (defaults to API_PASSWORD)")
	flagVerbose  = flag.Bool("verbose", false, "print full card numbers (otherwise masked)")
	flagTimeout  = flag.Duration("timeout", 10*time.Second, "request timeout")
)

const usage = `usage: cardctl [flags] <command> [args]

commands:
  issue [-prefix 654987] [-number N] -senha P
  balance N
  authorize N SENHA VALOR
  history N
`

func main() {
	must(loadDotEnv())

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	user := firstNonEmpty(*flagUser, os.Getenv("API_USER"), "username")
	password := firstNonEmpty(*flagPassword, os.Getenv("API_PASSWORD"), "password")
	cli := authclient.New(*flagBase, user, password, &http.Client{Timeout: *flagTimeout})

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	args := flag.Args()
	switch args[0] {
	case "issue":
		must(issue(ctx, cli, args[1:]))
	case "balance":
		requireArgs(args, 2)
		balance, err := cli.Balance(ctx, args[1])
		must(err)
		fmt.Printf("%s %s\n", show(args[1]), balance.StringFixed(2))
	case "authorize":
		requireArgs(args, 4)
		amount, err := decimal.NewFromString(args[3])
		if err != nil {
			fail("invalid amount %q", args[3])
		}
		must(cli.Authorize(ctx, args[1], args[2], amount))
		fmt.Println("OK")
	case "history":
		requireArgs(args, 2)
		transactions, err := cli.ListTransactions(ctx, args[1])
		must(err)
		for _, t := range transactions {
			fmt.Printf("%s  %s  %s\n", t.CreatedAt.Format(time.RFC3339), t.ID, t.Amount.StringFixed(2))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func issue(ctx context.Context, cli *authclient.Client, args []string) error {
	set := flag.NewFlagSet("issue", flag.ExitOnError)
	prefix := set.String("prefix", "654987", "prefix of a generated number")
	number := set.String("number", "", "card number (generated when empty)")
	senha := set.String("senha", "", "card password")
	set.Parse(args)

	if *senha == "" {
		return errors.New("-senha is required")
	}
	if *number == "" {
		generated, err := pan.Generate(*prefix)
		if err != nil {
			return err
		}
		*number = generated
	} else if warning := luhnWarning(*number); warning != "" {
		// numbers are opaque to the authorizer; issue anyway
		fmt.Fprintln(os.Stderr, warning)
	}

	card, err := cli.CreateCard(ctx, *number, *senha)
	var exists *models.CardExistsError
	if errors.As(err, &exists) {
		return fmt.Errorf("card %s already exists", show(exists.Existing.Number))
	}
	if err != nil {
		return err
	}
	fmt.Printf("issued %s\n", show(card.Number))
	return nil
}

// loadDotEnv loads .env files; a missing file is not an error.
func loadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func luhnWarning(number string) string {
	if pan.LuhnValid(number) {
		return ""
	}
	return fmt.Sprintf("warning: %s fails the Luhn check", show(number))
}

func show(number string) string {
	if *flagVerbose {
		return number
	}
	return pan.Mask(number)
}

func requireArgs(args []string, n int) {
	if len(args) < n {
		flag.Usage()
		os.Exit(2)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func must(err error) {
	if err != nil {
		fail("%v", err)
	}
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
