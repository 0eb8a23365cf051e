package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/raresift/searchcore"
	"github.com/raresift/searchcore/embedder"
	"github.com/raresift/searchcore/ingest"
	"github.com/raresift/searchcore/migrate"
	"github.com/raresift/searchcore/pg"
	"github.com/raresift/searchcore/ratelimit"
)

var cli struct {
	Search struct {
		Query     string  `arg:"" help:"Free-text query, e.g. 'bicycle' or 'red car at night'."`
		Limit     int     `help:"Maximum results." default:"20"`
		Threshold float32 `help:"Explicit similarity threshold; 0 uses the adaptive policy." default:"0"`
		User      int64   `help:"Owner scope; 0 searches public/demo data." default:"0"`
		Weather   string  `help:"Filter by video weather tag."`
		TimeOfDay string  `help:"Filter by video time-of-day tag."`
		Category  string  `help:"Filter by camera category."`
	} `cmd:"" help:"Semantic search over frame embeddings by text."`

	SearchImage struct {
		Path      string  `arg:"" type:"existingfile" help:"Query image file."`
		Limit     int     `help:"Maximum results." default:"20"`
		Threshold float32 `help:"Explicit similarity threshold; 0 uses the image default." default:"0"`
		User      int64   `help:"Owner scope; 0 searches public/demo data." default:"0"`
	} `cmd:"" help:"Semantic search over frame embeddings by example image."`

	Ingest struct {
		Once bool `help:"Process one batch and exit instead of polling."`
	} `cmd:"" help:"Embed frames that do not have an embedding yet."`

	Status struct{} `cmd:"" help:"Show rate limiter utilization."`

	InitDB struct{} `cmd:"" help:"Create tables and indexes."`
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05",
	}))

	ktx := kong.Parse(&cli, kong.Name("raresift"), kong.Description("Driving-footage semantic search."))

	ctx := context.Background()
	cfg := searchcore.FromEnv()

	if err := run(ctx, ktx.Command(), cfg, logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg searchcore.Config, logger *slog.Logger) error {
	if command == "init-db" {
		// A plain pool: pgvector type registration would fail before the
		// extension exists.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrate.ApplyPostgres(ctx, pool, embedder.TextEmbedding3Small.Dims); err != nil {
			return err
		}
		logger.Info("schema ready")
		return nil
	}

	pool, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := pg.NewStore(pool)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
		TokensPerMinute:   cfg.TokensPerMinute,
		MaxConcurrent:     cfg.MaxConcurrent,
		DailyCostLimit:    cfg.DailyCostLimit,
		Pricing:           embedder.Pricing(),
		DefaultPricePer1K: embedder.DefaultPricePer1K,
	})

	enc, err := embedder.New(embedder.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Limiter: limiter,
	})
	if err != nil {
		return err
	}

	svc, err := searchcore.NewService(searchcore.Options{
		Encoder: enc,
		Store:   store,
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	switch command {
	case "search <query>":
		resp, err := svc.SearchByText(ctx, cli.Search.Query, searchcore.SearchRequest{
			UserID:    cli.Search.User,
			Limit:     cli.Search.Limit,
			Threshold: cli.Search.Threshold,
			Weather:   cli.Search.Weather,
			TimeOfDay: cli.Search.TimeOfDay,
			Category:  cli.Search.Category,
		})
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "search-image <path>":
		data, err := os.ReadFile(cli.SearchImage.Path)
		if err != nil {
			return err
		}
		resp, err := svc.SearchByImage(ctx, embedder.Image{Bytes: data}, searchcore.SearchRequest{
			UserID:    cli.SearchImage.User,
			Limit:     cli.SearchImage.Limit,
			Threshold: cli.SearchImage.Threshold,
		})
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "ingest":
		w := ingest.New(store, enc, ingest.Options{
			PollEvery: 5 * time.Second,
			Logger:    logger,
		})
		if cli.Ingest.Once {
			n := w.ProcessOnce(ctx)
			logger.Info("ingest pass complete", "embedded", n)
			return nil
		}
		return w.Run(ctx)

	case "status":
		return printJSON(svc.RateLimitStatus())

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
