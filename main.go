package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"webdav-client/internal/cache"
	"webdav-client/internal/fs"
	"webdav-client/internal/sync"
	"webdav-client/internal/webdav"
)

func getEnvOrDefault(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

func usage() {
	fmt.Println("WebDAV client")
	fmt.Println("=============")
	fmt.Println("File operations against a WebDAV server, plus a local-to-remote mirror.")
	fmt.Println()
	fmt.Println("Usage: webdav-client [flags] <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  ls [path]                List a collection (-deep for the whole subtree)")
	fmt.Println("  stat <path>              Show resource properties")
	fmt.Println("  exists <path>            Exit 0 when the resource exists, 1 otherwise")
	fmt.Println("  get <path> [file]        Download a file (stdout when no file is given)")
	fmt.Println("  put <file> <path>        Upload a file (-parents creates missing collections)")
	fmt.Println("  rm <path>                Delete a file or collection")
	fmt.Println("  mkdir <path>             Create a collection")
	fmt.Println("  mv <src> <dst>           Move a resource")
	fmt.Println("  cp <src> <dst>           Copy a resource")
	fmt.Println("  mirror <dir> [prefix]    Mirror a local directory onto the share")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment variables (used as defaults for flags):")
	fmt.Println("  WEBDAV_URL       - WebDAV server URL")
	fmt.Println("  WEBDAV_USER      - WebDAV username")
	fmt.Println("  WEBDAV_PASSWORD  - WebDAV password")
	fmt.Println("  WEBDAV_TOKEN     - Bearer token (instead of username/password)")
	fmt.Println("  WEBDAV_INSECURE  - Allow self-signed certificates (default: false)")
	fmt.Println("  LOG_LEVEL        - trace, debug, info, warn or error (default: info)")
	fmt.Println("  DB_PATH          - Mirror state database path (default: mirror.db)")
}

func main() {
	var (
		webdavURL      = flag.String("webdav-url", os.Getenv("WEBDAV_URL"), "WebDAV server URL")
		webdavUser     = flag.String("webdav-user", os.Getenv("WEBDAV_USER"), "WebDAV username")
		webdavPassword = flag.String("webdav-password", os.Getenv("WEBDAV_PASSWORD"), "WebDAV password")
		webdavToken    = flag.String("webdav-token", os.Getenv("WEBDAV_TOKEN"), "Bearer token (instead of username/password)")
		webdavInsecure = flag.Bool("webdav-insecure", getEnvOrDefault("WEBDAV_INSECURE", "false") == "true", "Allow self-signed certificates")

		logLevel = flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level: trace, debug, info, warn or error")

		deep      = flag.Bool("deep", false, "List the whole subtree instead of immediate members")
		overwrite = flag.Bool("overwrite", false, "Allow put/mv/cp to replace existing resources")
		parents   = flag.Bool("parents", false, "Create missing parent collections before put")

		dbPath  = flag.String("db-path", getEnvOrDefault("DB_PATH", "mirror.db"), "Mirror state database path")
		workers = flag.Int("mirror-workers", 2, "Parallel uploads during mirror")
		prune   = flag.Bool("mirror-prune", false, "Remove remote entries missing locally during mirror")

		help = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *help || flag.NArg() == 0 {
		usage()
		os.Exit(0)
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if *webdavURL == "" {
		logger.Fatal().Msg("WebDAV URL is required (use -webdav-url or WEBDAV_URL)")
	}

	cfg := webdav.Config{
		BaseURL:            *webdavURL,
		Username:           *webdavUser,
		Password:           *webdavPassword,
		BearerToken:        *webdavToken,
		InsecureSkipVerify: *webdavInsecure,
		Logger:             &logger,
	}

	client, err := webdav.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create WebDAV client")
	}

	command, args := flag.Arg(0), flag.Args()[1:]

	switch command {
	case "ls":
		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		entries, err := client.GetDirectoryContents(p, *deep)
		if err != nil {
			logger.Fatal().Err(err).Str("path", p).Msg("Listing failed")
		}
		for _, e := range entries {
			kind := "-"
			if e.IsDir() {
				kind = "d"
			}
			fmt.Printf("%s %10d  %s  %s\n", kind, e.Size(), e.ModTime().Format(time.RFC3339), e.Path())
		}

	case "stat":
		requireArgs(args, 1, "stat <path>")
		fi, err := client.Stat(args[0])
		if err != nil {
			logger.Fatal().Err(err).Str("path", args[0]).Msg("Stat failed")
		}
		fmt.Printf("Path:          %s\n", fi.Path())
		fmt.Printf("Name:          %s\n", fi.Name())
		fmt.Printf("Directory:     %v\n", fi.IsDir())
		fmt.Printf("Size:          %d\n", fi.Size())
		fmt.Printf("Last modified: %s\n", fi.ModTime().Format(time.RFC3339))
		if fi.ContentType() != "" {
			fmt.Printf("Content type:  %s\n", fi.ContentType())
		}
		if fi.ETag() != "" {
			fmt.Printf("ETag:          %s\n", fi.ETag())
		}

	case "exists":
		requireArgs(args, 1, "exists <path>")
		if !client.Exists(args[0]) {
			os.Exit(1)
		}

	case "get":
		requireArgs(args, 1, "get <path> [file]")
		stream, err := client.GetFileStream(args[0])
		if err != nil {
			logger.Fatal().Err(err).Str("path", args[0]).Msg("Download failed")
		}
		defer stream.Close()

		var out io.Writer = os.Stdout
		if len(args) > 1 {
			f, err := os.Create(args[1])
			if err != nil {
				logger.Fatal().Err(err).Msg("Failed to create local file")
			}
			defer f.Close()
			out = f
		}
		if _, err := io.Copy(out, stream); err != nil {
			logger.Fatal().Err(err).Msg("Download failed")
		}

	case "put":
		requireArgs(args, 2, "put <file> <path>")
		f, err := os.Open(args[0])
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open local file")
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to stat local file")
		}
		if *parents {
			if err := client.CreateParentDirectories(args[1]); err != nil {
				logger.Fatal().Err(err).Msg("Failed to create parent collections")
			}
		}
		if err := client.PutFileStream(args[1], f, info.Size(), *overwrite); err != nil {
			logger.Fatal().Err(err).Str("path", args[1]).Msg("Upload failed")
		}

	case "rm":
		requireArgs(args, 1, "rm <path>")
		if err := client.DeleteFile(args[0]); err != nil {
			logger.Fatal().Err(err).Str("path", args[0]).Msg("Delete failed")
		}

	case "mkdir":
		requireArgs(args, 1, "mkdir <path>")
		if err := client.CreateDirectory(args[0]); err != nil {
			logger.Fatal().Err(err).Str("path", args[0]).Msg("Mkdir failed")
		}

	case "mv":
		requireArgs(args, 2, "mv <src> <dst>")
		if err := client.MoveFile(args[0], args[1], *overwrite); err != nil {
			logger.Fatal().Err(err).Msg("Move failed")
		}

	case "cp":
		requireArgs(args, 2, "cp <src> <dst>")
		if err := client.CopyFile(args[0], args[1], *overwrite); err != nil {
			logger.Fatal().Err(err).Msg("Copy failed")
		}

	case "mirror":
		requireArgs(args, 1, "mirror <dir> [prefix]")
		prefix := "/"
		if len(args) > 1 {
			prefix = args[1]
		}

		local, err := fs.NewLocalFs(args[0])
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open local directory")
		}
		remote, err := fs.NewWebDAVFs(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create WebDAV filesystem")
		}
		db, err := cache.NewCacheDB(*dbPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open mirror state database")
		}
		defer db.Close()

		mirror := sync.New(local, remote, db,
			sync.WithWorkers(*workers),
			sync.WithPrune(*prune),
			sync.WithLogger(logger))
		if err := mirror.Run(prefix); err != nil {
			logger.Fatal().Err(err).Msg("Mirror failed")
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}
}

func requireArgs(args []string, n int, usageLine string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "Usage: webdav-client [flags] %s\n", usageLine)
		os.Exit(2)
	}
}
