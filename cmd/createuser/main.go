// Command createuser generates the SQL for provisioning a user account.
// Accounts are created out-of-band by an administrator; the server itself
// has no signup path.
//
//	createuser <username> [teacher] [student]
package main

import (
	"fmt"
	"os"
	"strings"

	"bildung/internal/common/security"

	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: createuser <username> [teacher] [student]")
	}
	username := os.Args[1]
	roles := os.Args[2:]
	for _, role := range roles {
		if role != "teacher" && role != "student" {
			return fmt.Errorf("unknown role %q", role)
		}
	}

	password, err := promptPassword("New Password: ")
	if err != nil {
		return err
	}
	passwordRepeat, err := promptPassword("Repeat Password: ")
	if err != nil {
		return err
	}
	if password != passwordRepeat {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	printSQL(username, hash, roles)
	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func printSQL(username, hash string, roles []string) {
	fmt.Printf("INSERT INTO users(username, password_hash) VALUES ('%s', '%s') RETURNING id;\n",
		escape(username), escape(hash))
	for _, role := range roles {
		fmt.Printf("INSERT INTO roles(user_id, role) VALUES (currval('users_id_seq'), '%s');\n", role)
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
