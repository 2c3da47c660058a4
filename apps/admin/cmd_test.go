package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"testing"
)

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_migrate(t *testing.T) {
	cli := &commandLine{}

	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCommand = command
		gotArgs = args
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version", "fix": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires a version", command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "up-to with version", args: []string{"migrate", "up-to", "2"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if gotCommand != "up-to" {
		t.Errorf("gooseRunFunc command = %q, want %q", gotCommand, "up-to")
	}
	if len(gotArgs) != 1 || gotArgs[0] != "2" {
		t.Errorf("gooseRunFunc args = %v, want [2]", gotArgs)
	}
}

func Test_commandLine_hashPassword(t *testing.T) {
	cli := &commandLine{}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "empty password", args: []string{"hashpassword"}, wantErr: errHelp},
		{name: "hash", args: []string{"hashpassword"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if tt.name == "empty password" {
				return nil, nil
			}
			return []byte("s3cret"), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
