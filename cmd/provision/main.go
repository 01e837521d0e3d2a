package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/provision"
	"github.com/xela07ax/topic-insights/internal/provision/bootstrap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "synth":
		runSynth(os.Args[2:])
	case "rotate":
		runRotate(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  provision synth  -inputs inputs.json [-out template.json]
  provision rotate -dsn postgres://... [-schema app] [-out credentials.json]`)
	os.Exit(2)
}

// runSynth читает входы (префикс, админский секрет, сеть) и пишет шаблон
func runSynth(args []string) {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	inputsPath := fs.String("inputs", "inputs.json", "path to descriptor inputs JSON")
	outPath := fs.String("out", "", "output path (default stdout)")
	fs.Parse(args)

	data, err := os.ReadFile(*inputsPath)
	if err != nil {
		log.Fatalf("failed to read inputs: %v", err)
	}

	var in provision.Inputs
	if err := json.Unmarshal(data, &in); err != nil {
		log.Fatalf("invalid inputs file: %v", err)
	}

	desc, err := provision.NewDescriptor(in)
	if err != nil {
		log.Fatalf("invalid descriptor: %v", err)
	}

	tpl, err := desc.Synthesize()
	if err != nil {
		log.Fatalf("synthesis failed: %v", err)
	}

	out, err := tpl.JSON()
	if err != nil {
		log.Fatalf("failed to serialize template: %v", err)
	}

	if *outPath == "" {
		fmt.Println(string(out))
		return
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		log.Fatalf("failed to write template: %v", err)
	}
	log.Printf("Template written to %s", *outPath)
}

// runRotate — тот самый пост-деплойный шаг: placeholder-секреты получают
// реальные пароли, файл с новыми значениями уходит в хранилище секретов
func runRotate(args []string) {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	dsn := fs.String("dsn", os.Getenv("DB_URL"), "admin connection string")
	schema := fs.String("schema", "app", "application schema name")
	outPath := fs.String("out", "credentials.json", "where to write rotated credentials")
	fs.Parse(args)

	if *dsn == "" {
		log.Fatal("admin DSN is required (-dsn or DB_URL)")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	b, err := bootstrap.NewBootstrap(*dsn, *schema, logger)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer b.Close()

	// Проверяем соединение с таймаутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := b.Ping(ctx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	cancel()

	rotateCtx, rotateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer rotateCancel()

	creds, err := b.Rotate(rotateCtx, bootstrap.DefaultRoles())
	if err != nil {
		log.Fatalf("rotation failed: %v", err)
	}

	if err := bootstrap.WriteCredentialsFile(*outPath, creds); err != nil {
		log.Fatalf("failed to write credentials: %v", err)
	}
	log.Printf("Rotated %d roles, credentials written to %s", len(creds), *outPath)
}
