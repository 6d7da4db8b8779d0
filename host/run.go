package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"aside/annotate"
	"aside/schedule"
	"aside/state"
)

// RunAnnotate is the action of the annotate subcommand: one reconciliation
// pass over every message of a transcript database.
func RunAnnotate(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dbPath := cmd.Args().Get(0)
	if dbPath == "" {
		return errors.New("no transcript database specified")
	}
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, extra arguments ignored", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	env.Overwrite = cmd.Bool("overwrite")

	store, err := OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := NewSession(store)
	engine, err := annotate.NewEngine(env.Cfg, sess, buildResolver(env), env.Log)
	if err != nil {
		return err
	}

	if err := engine.ProcessAll(false); err != nil {
		return fmt.Errorf("annotation pass failed: %w", err)
	}

	if env.Overwrite {
		if err := saveAll(sess, store); err != nil {
			return err
		}
		env.Log.Info("Annotated transcript saved", zap.String("database", dbPath))
	} else {
		env.Log.Info("Dry run complete, pass --overwrite to persist", zap.String("database", dbPath))
	}
	return nil
}

// RunWatch is the action of the watch subcommand: keep polling a transcript
// database and reconcile messages as they change until interrupted.
func RunWatch(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dbPath := cmd.Args().Get(0)
	if dbPath == "" {
		return errors.New("no transcript database specified")
	}
	env.Overwrite = cmd.Bool("overwrite")

	store, err := OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := NewSession(store)
	engine, err := annotate.NewEngine(env.Cfg, sess, buildResolver(env), env.Log)
	if err != nil {
		return err
	}

	sched := schedule.New(engine.Callbacks(), env.Log,
		schedule.WithDebounce(env.Cfg.Boxes.Debounce()),
		schedule.WithMinInterval(env.Cfg.Boxes.MinFlushInterval()))

	interval := time.Duration(cmd.Int("interval")) * time.Millisecond
	watcher := NewWatcher(store, sched, interval, env.Log)

	env.Log.Info("Watching transcript", zap.String("database", dbPath))
	err = watcher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if env.Overwrite {
		if err := saveAll(sess, store); err != nil {
			return err
		}
		env.Log.Info("Annotated transcript saved", zap.String("database", dbPath))
	}
	return nil
}

// RunAvatarsList is the action of the avatars list subcommand.
func RunAvatarsList(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dir := cmd.Args().Get(0)
	if dir == "" {
		dir = env.Cfg.Avatars.LibraryPath
	}
	if dir == "" {
		return errors.New("no avatar library configured or specified")
	}

	lib, err := LoadLibrary(dir, env.Log)
	if err != nil {
		return err
	}
	for _, e := range lib.Entries() {
		fmt.Fprintf(os.Stdout, "%s\t%s\n", e.Name, e.URL)
	}
	env.Log.Debug("Listed avatar library", zap.String("dir", dir), zap.Int("entries", len(lib.Entries())))
	return nil
}

// RunAvatarsGenerate is the action of the avatars generate subcommand: write
// initial-letter avatars for the named speakers.
func RunAvatarsGenerate(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	if cmd.Args().Len() == 0 {
		return errors.New("no speaker names specified")
	}
	dir := cmd.String("out")
	if dir == "" {
		dir = env.Cfg.Avatars.LibraryPath
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create avatar directory: %w", err)
	}

	var errs error
	for _, name := range cmd.Args().Slice() {
		data, err := GenerateInitialAvatar(name, env.Cfg.Avatars.Size)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fname := filepath.Join(dir, avatarFileName(name))
		if err := os.WriteFile(fname, data, 0o644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unable to write avatar for %q: %w", name, err))
			continue
		}
		env.Log.Info("Generated avatar", zap.String("name", name), zap.String("file", fname))
	}
	return errs
}

// buildResolver loads the configured avatar library, degrading to no
// avatars when there is none or it cannot be read.
func buildResolver(env *state.LocalEnv) annotate.AvatarResolver {
	if env.Cfg.Avatars.LibraryPath == "" {
		return nil
	}
	lib, err := LoadLibrary(env.Cfg.Avatars.LibraryPath, env.Log)
	if err != nil {
		env.Log.Warn("Avatar library unavailable, continuing without avatars", zap.Error(err))
		return nil
	}
	return lib.Resolver(env.Cfg.Avatars.ScoreThreshold)
}

func avatarFileName(name string) string {
	s := slug.Make(name)
	if s == "" {
		s = "avatar"
	}
	return s + ".png"
}

func saveAll(sess *Session, store *Store) error {
	ids, err := store.MessageIDs()
	if err != nil {
		return err
	}
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, sess.Save(id))
	}
	return errs
}
