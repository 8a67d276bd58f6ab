package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/passageway/passageway"
	"github.com/passageway/passageway/persistence/chromem"
	"github.com/passageway/passageway/retriever"

	mcpE "github.com/passageway/passageway/mcp"
	httpT "github.com/passageway/passageway/transport/http"
	natsT "github.com/passageway/passageway/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "passageway",
		Usage: "Passageway retrieval service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the Passageway home directory",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the remote embedding service",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve passage retrieval over NATS, HTTP and MCP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL. Empty disables the NATS transport",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.StringFlag{
						Name:    "nats-creds",
						Usage:   "NATS user credentials file",
						Sources: cli.EnvVars("NATS_CREDS"),
					},
					&cli.StringFlag{
						Name:  "instance",
						Usage: "Instance name for NATS subjects",
						Value: "default",
					},
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: false,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
				},
				Action: serve,
			},
			{
				Name:      "query",
				Usage:     "Retrieve the passages closest to a query",
				ArgsUsage: "[query...]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of passages to return",
					},
				},
				Action: query,
			},
			{
				Name:      "seed",
				Usage:     "Embed and index documents from a JSONL file",
				ArgsUsage: "[file]",
				Action:    seed,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func loadConfig(cmd *cli.Command) (passageway.Config, error) {
	var cfg passageway.Config

	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return cfg, err
		}

		path = filepath.Join(homeDir, ".passageway")
	}

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}

	cfg.SetDefaults()

	if apiKey := cmd.String("api-key"); apiKey != "" {
		cfg.Embedding.APIKey = apiKey
	}

	if cfg.Retriever.Chromem.Path == "" {
		cfg.Retriever.Chromem.Path = filepath.Join(path, "vectors")
	}

	if cfg.Embedding.Cache.Path == "" {
		cfg.Embedding.Cache.Path = filepath.Join(path, "embeddings.db")
	}

	return cfg, nil
}

func newService(ctx context.Context, cfg passageway.Config) (passageway.Service, error) {
	embedder, err := passageway.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	backend, err := passageway.NewBackend(ctx, cfg.Retriever)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	svc, err := passageway.NewService(cfg, embedder, backend)
	if err != nil {
		embedder.Close()
		backend.Close()
		return nil, err
	}

	return svc, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	svc = passageway.LoggingMiddleware(log)(svc)

	endpoints := passageway.EndpointSet{
		Retrieve: passageway.RetrieveEndpoint(svc),
	}

	// Add NATS Transport
	if natsURL := cmd.String("nats"); natsURL != "" {
		instance := cmd.String("instance")

		opts := []nats.Option{
			nats.Name("Passageway Server - " + instance),
		}

		if natsCreds := cmd.String("nats-creds"); natsCreds != "" {
			opts = append(opts, nats.UserCredentials(natsCreds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "passageway",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "passageway." + instance

		root := srv.AddGroup(topic)
		natsT.AddEndpoints(root, endpoints)
	}

	httpEnabled := cmd.Bool("http")
	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func query(ctx context.Context, cmd *cli.Command) error {
	queryText := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(queryText) == "" {
		return passageway.ErrQueryRequired
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	k := int(cmd.Int("k"))

	prediction, err := svc.Retrieve(ctx, queryText, k)
	if err != nil {
		return err
	}

	for i, passage := range prediction.Passages {
		fmt.Printf("%d. %s\n", i+1, passage.LongText)
	}

	return nil
}

func seed(ctx context.Context, cmd *cli.Command) error {
	file := cmd.Args().First()
	if file == "" {
		return errors.New("a documents file is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	embedder, err := passageway.NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return err
	}
	defer embedder.Close()

	backend, err := passageway.NewBackend(ctx, cfg.Retriever)
	if err != nil {
		return err
	}
	defer backend.Close()

	indexer, ok := backend.(retriever.Indexer)
	if !ok {
		return fmt.Errorf("%s backend does not support seeding", cfg.Retriever.Backend)
	}

	contentColumn := cfg.Retriever.Chromem.ContentColumn
	if contentColumn == "" {
		contentColumn = chromem.DefaultContentColumn
	}

	docs, err := readDocuments(file, contentColumn)
	if err != nil {
		return err
	}

	// Embed only documents seeded without a precomputed embedding.
	var (
		missing  []int
		contents []string
	)

	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			missing = append(missing, i)
			contents = append(contents, doc.Values[contentColumn])
		}
	}

	if len(missing) > 0 {
		embeddings, err := embedder.Embed(ctx, contents)
		if err != nil {
			return err
		}

		if len(embeddings) != len(missing) {
			return fmt.Errorf("expected %d embeddings, got %d", len(missing), len(embeddings))
		}

		for j, i := range missing {
			docs[i].Embedding = embeddings[j]
		}
	}

	if err := indexer.Index(ctx, docs); err != nil {
		return err
	}

	fmt.Printf("indexed %d documents\n", len(docs))
	return nil
}

func readDocuments(file string, contentColumn string) ([]retriever.Document, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []retriever.Document

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var doc retriever.Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		// A document without an id gets one derived from its content.
		// With both missing there is nothing stable to derive from.
		if doc.ID == "" {
			content := doc.Values[contentColumn]
			if content == "" {
				return nil, fmt.Errorf("%w: line %d has neither an id nor a %q value",
					retriever.ErrInvalidDocument, line, contentColumn)
			}

			doc.ID = passageway.DocumentID(content)
		}

		docs = append(docs, doc)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, errors.New("no documents found")
	}

	return docs, nil
}
