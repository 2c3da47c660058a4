package main

import (
	"database/sql"
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db *sql.DB
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status [ARGS...]  - run database migrations")
	fmt.Println("  hashpassword                      - hash an operator password for config")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "hashpassword":
		return cli.hashPassword()
	default:
		cli.printUsage()
		return errHelp
	}
}

// hashPassword prompts for a password and prints its bcrypt hash, to be
// pasted into an operator's config entry.
func (cli *commandLine) hashPassword() error {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		return errHelp
	}

	hash, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}
