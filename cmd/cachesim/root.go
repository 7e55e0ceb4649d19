package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "cachesim simulates a compressed, coherent cache hierarchy.",
	Long: `cachesim builds a multi-core cache hierarchy, drives it with ` +
		`a synthetic workload and reports the hits, misses and evictions ` +
		`of every level. Flag defaults can be set with CACHESIM_* ` +
		`variables, also read from a .env file.`,
	SilenceUsage: true,
}

func init() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot load .env: %v\n", err)
	}
}

func envString(name, def string) string {
	v, ok := os.LookupEnv("CACHESIM_" + name)
	if !ok || v == "" {
		return def
	}

	return v
}

func envUint(name string, def uint64) uint64 {
	v, ok := os.LookupEnv("CACHESIM_" + name)
	if !ok || v == "" {
		return def
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring CACHESIM_%s=%q, not an unsigned integer\n", name, v)
		return def
	}

	return n
}

func envFloat(name string, def float64) float64 {
	v, ok := os.LookupEnv("CACHESIM_" + name)
	if !ok || v == "" {
		return def
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring CACHESIM_%s=%q, not a number\n", name, v)
		return def
	}

	return f
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv("CACHESIM_" + name)
	if !ok || v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring CACHESIM_%s=%q, not a boolean\n", name, v)
		return def
	}

	return b
}
