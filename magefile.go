//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target when running mage without arguments.
var Default = Build

const binary = "bin/mediagen"

// Build builds the mediagen binary.
func Build() error {
	mg.Deps(Wire)
	fmt.Println("Building mediagen...")
	return sh.Run("go", "build", "-o", binary, "./cmd/mediagen")
}

// wireDirs are the packages with a wire injector.
var wireDirs = []string{"./internal/app"}

// Wire regenerates wire_gen.go.
func Wire() error {
	for _, dir := range wireDirs {
		fmt.Printf("Running wire in %s...\n", dir)
		if err := sh.Run("wire", "gen", dir); err != nil {
			return fmt.Errorf("wire %s: %w", dir, err)
		}
	}
	return nil
}

// Test runs all tests with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// TestRedis runs the Redis-backed tests against a local server.
func TestRedis() error {
	addr := os.Getenv("MEDIAGEN_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	fmt.Printf("Running Redis tests against %s...\n", addr)
	return sh.RunWith(map[string]string{"MEDIAGEN_TEST_REDIS_ADDR": addr},
		"go", "test", "./internal/adapter/outbound/redis/...", "./internal/utils/middleware/...")
}

// TestCover runs tests with coverage.
func TestCover() error {
	fmt.Println("Running tests with coverage...")
	return sh.Run("go", "test", "-cover", "-coverprofile=coverage.out", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	fmt.Println("Running linter...")
	return sh.Run("golangci-lint", "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	_ = os.Remove("coverage.out")
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Migrate applies the database schema using the current config.
func Migrate() error {
	mg.Deps(Build)
	return sh.RunV("./"+binary, "migrate")
}

// All runs tidy, wire, vet, lint, test, and build.
func All() error {
	mg.SerialDeps(Tidy, Wire, Vet, Lint, Test, Build)
	return nil
}

// Dev builds and runs the server for development.
func Dev() error {
	mg.Deps(Build)
	fmt.Println("Starting mediagen...")
	cmd := exec.Command("./"+binary, "serve")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// CI runs the CI pipeline (tidy, wire, vet, test with coverage).
func CI() error {
	mg.SerialDeps(Tidy, Wire, Vet, TestCover)
	return nil
}

// Install installs development tools.
func Install() error {
	fmt.Println("Installing development tools...")

	tools := []string{
		"github.com/google/wire/cmd/wire@latest",
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
	}
	for _, tool := range tools {
		fmt.Printf("  Installing %s\n", tool)
		if err := sh.Run("go", "install", tool); err != nil {
			return fmt.Errorf("installing %s: %w", tool, err)
		}
	}
	return nil
}
