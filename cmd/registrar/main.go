package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Course Registration API
// @version 1.0.0
// @description Course, index and seat allocation service
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "registrar",
	Short:         "Course registration service",
	Long:          `Serves course registration over HTTP and keeps the registration snapshot in CSV files or PostgreSQL.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
