// Command mediareview is the CLI entry point for the media review system.
//
// It owns everything the core deliberately does not: flag parsing, logging,
// user-facing output, and the mapping of typed service errors onto process
// exit codes. The core services are constructed here with their dependencies
// injected explicitly (store handle, aggregate cache, lock table, limiter);
// no package-level singletons exist.
//
// Usage:
//
//	mediareview add-media  -title "Inception" -type Movie
//	mediareview review     -user 8 -media 11 -rating 5 -comment "great"
//	mediareview review     -user 8 11:5 3:2:"meh"
//	mediareview top-rated  -limit 5
//	mediareview recommend  -user 1
//
// Exit codes: 0 success, 1 internal/persistence failure, 2 invalid input,
// 3 entity not found, 4 transient (lock timeout / rate limited, safe to
// retry), 5 cache inconsistency detected.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Fayouzz/Media-Review-System/internal/cache"
	"github.com/Fayouzz/Media-Review-System/internal/config"
	"github.com/Fayouzz/Media-Review-System/internal/observability"
	"github.com/Fayouzz/Media-Review-System/internal/repo"
	"github.com/Fayouzz/Media-Review-System/internal/services"
	"github.com/Fayouzz/Media-Review-System/internal/sysutil"
	"github.com/Fayouzz/Media-Review-System/internal/utils"
)

// version is stamped into traces; overridable via -ldflags.
var version = "1.0.0"

// app bundles the constructed services for command dispatch.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	reviews *services.ReviewService
	media   *services.MediaService
	users   *services.UserService
	rec     *services.RecommendService
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}
	log := sysutil.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	if len(args) == 0 {
		usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Error().Err(err).Msg("otel setup failed")
		return 1
	}
	defer func() { _ = shutdown(context.Background()) }()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db_path", cfg.DBPath).Msg("open database")
		return 1
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Error().Err(err).Msg("migrate schema")
		return 1
	}

	agg, err := cache.New(services.StoreSource{DB: db}, cfg.CacheCapacity)
	if err != nil {
		log.Error().Err(err).Msg("build aggregate cache")
		return 1
	}

	a := &app{
		cfg: cfg,
		log: log,
		reviews: &services.ReviewService{
			DB:            db,
			Cache:         agg,
			Locks:         cache.NewKeyedLock(),
			LockWait:      cfg.LockWait,
			Limiter:       services.NewUserLimiter(cfg.RateRPS, cfg.RateBurst),
			TopRatedLimit: cfg.TopRatedLimit,
		},
		media: &services.MediaService{DB: db, Cache: agg},
		users: &services.UserService{DB: db, Cache: agg},
		rec:   &services.RecommendService{DB: db, Cache: agg, Limit: cfg.TopRatedLimit},
	}

	err = a.dispatch(ctx, args[0], args[1:])
	if err != nil {
		a.log.Error().Err(err).Str("command", args[0]).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return exitCode(err)
}

// dispatch routes a subcommand to its handler.
func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add-media":
		return a.cmdAddMedia(ctx, args)
	case "remove-media":
		return a.cmdRemoveMedia(ctx, args)
	case "list":
		return a.cmdList(ctx, args)
	case "search":
		return a.cmdSearch(ctx, args)
	case "top-rated":
		return a.cmdTopRated(ctx, args)
	case "add-user":
		return a.cmdAddUser(ctx, args)
	case "list-users":
		return a.cmdListUsers(ctx)
	case "remove-user":
		return a.cmdRemoveUser(ctx, args)
	case "review":
		return a.cmdReview(ctx, args)
	case "favorite":
		return a.cmdFavorite(ctx, args)
	case "alerts":
		return a.cmdAlerts(ctx, args)
	case "recommend":
		return a.cmdRecommend(ctx, args)
	case "verify-cache":
		return a.cmdVerifyCache(ctx, args)
	default:
		usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// errUsage marks malformed invocations (exit code 2).
var errUsage = errors.New("invalid usage")

func (a *app) cmdAddMedia(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-media", flag.ContinueOnError)
	title := fs.String("title", "", "media title")
	mediaType := fs.String("type", "", "media type: Movie|WebShow|Song|Cartoon")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	m, err := a.media.Add(ctx, *title, *mediaType)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s (id %d)\n", m.Type.Details(m.Title), m.ID)
	return nil
}

func (a *app) cmdRemoveMedia(ctx context.Context, args []string) error {
	id, err := idArg("remove-media", args)
	if err != nil {
		return err
	}
	if err := a.media.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Removed media %d\n", id)
	return nil
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	page := fs.String("page", "1", "page number")
	size := fs.String("page-size", "20", "page size")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	items, total, err := a.media.List(ctx, utils.AtoiDefault(*page, 1), utils.AtoiDefault(*size, 20))
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("No media found. Please add media first.")
		return nil
	}
	for _, it := range items {
		if it.Average != nil {
			fmt.Printf("%d\t%s\t%.2f (%d reviews)\n", it.ID, it.Type.Details(it.Title), *it.Average, it.ReviewCount)
		} else {
			fmt.Printf("%d\t%s\tno ratings\n", it.ID, it.Type.Details(it.Title))
		}
	}
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	title := fs.String("title", "", "title substring")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	items, err := a.media.Search(ctx, *title)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No matching media found.")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%d\t%s\n", it.ID, it.Type.Details(it.Title))
	}
	return nil
}

func (a *app) cmdTopRated(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top-rated", flag.ContinueOnError)
	limit := fs.String("limit", "", "ranking length")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	entries, err := a.reviews.TopRated(ctx, utils.AtoiDefault(*limit, 0))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No rated media available yet.")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("%d.\tmedia %d\tavg %.2f (%d reviews)\n", i+1, e.MediaID, e.Average, e.ReviewCount)
	}
	return nil
}

func (a *app) cmdAddUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	username := fs.String("username", "", "unique username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	u, err := a.users.Create(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Added user %q (id %d)\n", u.Username, u.ID)
	return nil
}

func (a *app) cmdListUsers(ctx context.Context) error {
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}
	for _, u := range users {
		fmt.Printf("%d\t%s\n", u.ID, u.Username)
	}
	return nil
}

func (a *app) cmdRemoveUser(ctx context.Context, args []string) error {
	id, err := idArg("remove-user", args)
	if err != nil {
		return err
	}
	if err := a.users.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Removed user %d\n", id)
	return nil
}

// cmdReview submits one review via flags, or a batch via positional
// "media:rating[:comment]" arguments. Batch submissions run concurrently,
// one goroutine per review.
func (a *app) cmdReview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	user := fs.String("user", "", "author user id")
	media := fs.String("media", "", "media id")
	rating := fs.String("rating", "", "rating 1..5")
	comment := fs.String("comment", "", "optional comment")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	userID, ok := utils.ParseID(*user)
	if !ok {
		return fmt.Errorf("%w: -user must be a positive integer", errUsage)
	}

	subs, err := parseSubmissions(fs.Args())
	if err != nil {
		return err
	}
	if *media != "" {
		mediaID, ok := utils.ParseID(*media)
		if !ok {
			return fmt.Errorf("%w: -media must be a positive integer", errUsage)
		}
		subs = append(subs, services.Submission{
			MediaID: mediaID,
			Rating:  utils.AtoiDefault(*rating, 0),
			Comment: *comment,
		})
	}
	if len(subs) == 0 {
		return fmt.Errorf("%w: nothing to submit", errUsage)
	}

	results := a.reviews.SubmitMany(ctx, userID, subs)
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("media %d: rejected (%v)\n", r.MediaID, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		fmt.Printf("media %d: review %s accepted\n", r.MediaID, r.ReviewID)
	}
	return firstErr
}

func (a *app) cmdFavorite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("favorite", flag.ContinueOnError)
	user := fs.String("user", "", "user id")
	media := fs.String("media", "", "media id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	userID, ok := utils.ParseID(*user)
	if !ok {
		return fmt.Errorf("%w: -user must be a positive integer", errUsage)
	}
	mediaID, ok := utils.ParseID(*media)
	if !ok {
		return fmt.Errorf("%w: -media must be a positive integer", errUsage)
	}
	if err := a.users.AddFavorite(ctx, userID, mediaID); err != nil {
		return err
	}
	fmt.Printf("Media %d added to favorites for user %d\n", mediaID, userID)
	return nil
}

func (a *app) cmdAlerts(ctx context.Context, args []string) error {
	id, err := idArg("alerts", args)
	if err != nil {
		return err
	}
	alerts, err := a.users.Alerts(ctx, id)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Println("No new alerts.")
		return nil
	}
	for _, al := range alerts {
		fmt.Printf("- %s\n", al.Message)
	}
	return nil
}

func (a *app) cmdRecommend(ctx context.Context, args []string) error {
	id, err := idArg("recommend", args)
	if err != nil {
		return err
	}
	ids, err := a.rec.Recommend(ctx, id)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No recommendations available.")
		return nil
	}
	fmt.Println("Recommended media:")
	for _, mediaID := range ids {
		fmt.Printf("- media %d\n", mediaID)
	}
	return nil
}

func (a *app) cmdVerifyCache(ctx context.Context, args []string) error {
	id, err := idArg("verify-cache", args)
	if err != nil {
		return err
	}
	if err := a.reviews.VerifyAggregate(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Aggregate for media %d is consistent\n", id)
	return nil
}

// idArg parses the single -id flag shared by several subcommands.
func idArg(name string, args []string) (uint, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.String("id", "", "entity id")
	user := fs.String("user", "", "user id (alias of -id)")
	if err := fs.Parse(args); err != nil {
		return 0, errUsage
	}
	raw := *id
	if raw == "" {
		raw = *user
	}
	if raw == "" && fs.NArg() > 0 {
		raw = fs.Arg(0)
	}
	n, ok := utils.ParseID(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %s needs a positive integer id", errUsage, name)
	}
	return n, nil
}

// parseSubmissions converts "media:rating[:comment]" arguments into batch
// submissions.
func parseSubmissions(args []string) ([]services.Submission, error) {
	subs := make([]services.Submission, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: %q is not media:rating[:comment]", errUsage, arg)
		}
		mediaID, ok := utils.ParseID(parts[0])
		if !ok {
			return nil, fmt.Errorf("%w: %q has no media id", errUsage, arg)
		}
		sub := services.Submission{MediaID: mediaID, Rating: utils.AtoiDefault(parts[1], 0)}
		if len(parts) == 3 {
			sub.Comment = parts[2]
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// exitCode maps a service error onto the documented process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrInvalidMediaType),
		errors.Is(err, services.ErrEmptyTitle),
		errors.Is(err, services.ErrEmptyUsername),
		errors.Is(err, services.ErrDuplicateMedia),
		errors.Is(err, services.ErrDuplicateUser),
		errors.Is(err, services.ErrDuplicateFavorite):
		return 2
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrMediaNotFound):
		return 3
	case errors.Is(err, services.ErrLockTimeout),
		errors.Is(err, services.ErrRateLimited):
		return 4
	case errors.Is(err, services.ErrCacheInconsistency):
		return 5
	default:
		return 1
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `mediareview <command> [flags]

Commands:
  add-media    -title T -type Movie|WebShow|Song|Cartoon
  remove-media -id N
  list         [-page N] [-page-size N]
  search       -title SUBSTRING
  top-rated    [-limit N]
  add-user     -username U -password P
  list-users
  remove-user  -id N
  review       -user N [-media N -rating 1..5 [-comment C]] [media:rating[:comment] ...]
  favorite     -user N -media N
  alerts       -user N
  recommend    -user N
  verify-cache -id N
`)
}
