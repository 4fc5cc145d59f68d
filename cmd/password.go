package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <email> <password>",
	Short: "Print the bcrypt hash of a password and the mongo update that sets it",
	Args:  cobra.ExactArgs(2),
	// no config or logger needed
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePasswordUpdate(cmd.OutOrStdout(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func writePasswordUpdate(w io.Writer, email, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintf(w, "Bcrypt Hash: %s\n", hashedPassword)
	fmt.Fprintf(w, "\nTo update in MongoDB, run:\n")
	fmt.Fprintf(w, "db.users.updateOne(\n")
	fmt.Fprintf(w, "  {\"user.email\": %q},\n", email)
	fmt.Fprintf(w, "  {$set: {\"user.password\": %q}}\n", hashedPassword)
	fmt.Fprintf(w, ")\n")
	return nil
}
