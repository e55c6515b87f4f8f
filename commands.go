package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"docsearch/internal/api"
	"docsearch/internal/search"
	"docsearch/internal/service/archive"
	"docsearch/internal/transport"
	"docsearch/internal/views"
	"docsearch/internal/watch"
)

const shutdownTimeout = 5 * time.Second

func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd.String("api"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(ctx, cfg), nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	a.feed.Start(ctx)

	watchDir := cmd.String("watch")
	if watchDir == "" {
		watchDir = a.cfg.WatchDir
	}
	if watchDir != "" {
		w := watch.New(watchDir, a.cfg.WatchDebounce(), a.archive)
		if err := w.Start(ctx); err != nil {
			cancel()
			return err
		}
		defer w.Wait()
	}
	defer cancel()

	handler := api.NewHandler(a.archive, a.tracker, a.search, a.feed, a.bus, a.client)
	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cmd.String("addr")
	if addr == "" {
		addr = a.cfg.ServerAddress
	}
	srv := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("console listening on %s, service %s", addr, a.cfg.APIBaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	return nil
}

func uploadAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	control := a.archive.NewControl()
	st, err := a.archive.UploadFile(ctx, control, cmd.Args().First(), cmd.Bool("sync"))
	fmt.Println(st.Text)
	if err != nil {
		return err
	}
	if st.JobID == "" || cmd.Bool("no-wait") {
		return nil
	}

	_, err = a.tracker.Wait(ctx, st.JobID)
	if final, ok := a.archive.Status(control); ok {
		fmt.Println(final.Text)
	}
	return err
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(cmd.Args().Slice(), " ")
	out, err := a.search.Search(ctx, query, cmd.Bool("raw"))
	if err != nil {
		fmt.Println(views.FetchFailed)
		return err
	}
	printOutcome(out)
	return nil
}

func printOutcome(out search.Outcome) {
	switch out.Kind {
	case search.OutcomeTooShort:
		fmt.Println(out.Status)
	case search.OutcomeNotFound:
		panel := out.NotFound
		fmt.Println(panel.Title)
		fmt.Println(panel.Message)
		fmt.Println("Suggestions:")
		for _, s := range panel.Suggestions {
			fmt.Println("  - " + s)
		}
	default:
		for _, card := range out.Cards {
			heading := card.Heading
			if card.URL != "" {
				heading += " (" + card.URL + ")"
			}
			fmt.Println("== " + heading)
			fmt.Println(card.Clean)
			if card.ShowRaw {
				fmt.Println("-- raw --")
				fmt.Println(card.Raw)
			}
			fmt.Println()
		}
		fmt.Println("Related documents:")
		if out.Placeholder != "" {
			fmt.Println("  " + out.Placeholder)
		}
		for _, row := range out.Related {
			fmt.Printf("  %s  (%s)\n", row.Name, row.Title)
		}
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	dir := cmd.String("dir")
	if dir == "" {
		dir = a.cfg.DownloadDir
	}
	path, err := a.archive.Download(ctx, cmd.Args().First(), dir)
	if st, ok := a.archive.Status(archive.DownloadControl); ok {
		fmt.Println(st.Text)
	}
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func notificationsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.feed.Refresh(ctx); err != nil {
		return err
	}
	for _, n := range a.feed.Snapshot() {
		fmt.Println(n.Text)
	}
	return nil
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.client.ServerStatus(ctx)
	if err != nil {
		return fmt.Errorf("server status: %s", transport.Message(err))
	}
	fmt.Printf("documents: %d\nvectors: %d\n", st.Documents, st.Vectors)
	return nil
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	dir := cmd.Args().First()
	if dir == "" {
		dir = a.cfg.WatchDir
	}
	if dir == "" {
		return errors.New("no directory to watch: pass one or set watch_dir")
	}
	w := watch.New(dir, a.cfg.WatchDebounce(), a.archive)
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Wait()
	return nil
}
