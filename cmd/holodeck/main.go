package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"holodeck/assets"
	"holodeck/audio"
	"holodeck/client"
	"holodeck/config"
	"holodeck/editor"
	"holodeck/holodeck"
	"holodeck/library"
	"holodeck/logging"
	"holodeck/scene"
)

type idList []uint64

func (l *idList) String() string {
	parts := make([]string, len(*l))
	for i, id := range *l {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(v string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %q", v)
	}
	*l = append(*l, id)
	return nil
}

type fieldEdit struct {
	field editor.Field
	raw   string
}

type fieldList []fieldEdit

func (l *fieldList) String() string {
	parts := make([]string, len(*l))
	for i, f := range *l {
		parts[i] = string(f.field) + "=" + f.raw
	}
	return strings.Join(parts, ",")
}

func (l *fieldList) Set(v string) error {
	name, raw, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected field=value, got %q", v)
	}
	*l = append(*l, fieldEdit{field: editor.Field(strings.TrimSpace(name)), raw: raw})
	return nil
}

func main() {
	var (
		deletes     idList
		plays       idList
		edits       fieldList
		uploadPath  string
		uploadName  string
		uploadType  string
		selectID    uint64
		watch       bool
		audioDriver string
	)
	flag.StringVar(&uploadPath, "upload", "", "file to upload")
	flag.StringVar(&uploadName, "name", "", "asset name for -upload (default: file name without extension)")
	flag.StringVar(&uploadType, "type", string(assets.TypeModel3D), "asset type for -upload")
	flag.Var(&deletes, "delete", "asset id to delete (repeatable)")
	flag.Uint64Var(&selectID, "select", 0, "asset id to select")
	flag.Var(&edits, "set", "transform field edit for the selected model, e.g. rotY=90 (repeatable)")
	flag.Var(&plays, "play", "audio asset id to add to the mixer and start (repeatable)")
	flag.BoolVar(&watch, "watch", false, "keep polling the asset store and print scene changes")
	flag.StringVar(&audioDriver, "audio", "silent", "audio backend: silent or ebiten")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	c, err := client.NewFromConfig(cfg, logger)
	if err != nil {
		fmt.Printf("init client: %v\n", err)
		os.Exit(1)
	}

	var engine audio.Engine = audio.NewSilentEngine()
	if audioDriver == "ebiten" {
		engine = audio.NewEbitenEngine(&http.Client{Timeout: cfg.RequestTimeout}, logger)
	}

	sess := holodeck.New(c, holodeck.Options{
		Loader: scene.NewHTTPLoader(&http.Client{Timeout: cfg.RequestTimeout}),
		Engine: engine,
	}, logger)
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		// The library stays usable with an empty list; later refreshes retry.
		fmt.Printf("fetch assets: %v\n", err)
	}

	if uploadPath != "" {
		if err := uploadFile(ctx, sess.Library, uploadPath, uploadName, uploadType); err != nil {
			fmt.Println(err)
		}
	}
	for _, id := range deletes {
		if err := sess.Library.Delete(ctx, id); err != nil {
			fmt.Println(err)
		}
	}
	sess.Sync.Wait()

	if selectID != 0 {
		if err := sess.Library.Select(selectID); err != nil {
			fmt.Println(err)
		} else if len(edits) > 0 {
			applyEdits(ctx, sess.Editor, edits)
		}
	}
	for _, id := range plays {
		a, ok := sess.Store.Find(id)
		if !ok {
			fmt.Printf("asset %d not found\n", id)
			continue
		}
		if _, err := sess.Mixer.AddTrack(a); err != nil {
			fmt.Println(err)
			continue
		}
		if err := sess.Mixer.TogglePlayPause(id); err != nil {
			fmt.Println(err)
		}
	}

	sess.Sync.Wait()
	printAssets(sess)
	printScene(sess)

	if !watch {
		return
	}
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	last := sceneDigest(sess)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sess.Store.Refresh(ctx); err != nil {
				fmt.Printf("refresh: %v\n", err)
				continue
			}
			sess.Sync.Wait()
			if d := sceneDigest(sess); d != last {
				last = d
				printScene(sess)
			}
		}
	}
}

func uploadFile(ctx context.Context, lib *library.Library, path, name, typ string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	form := library.NewForm()
	form.Name = name
	form.Type = assets.AssetType(typ)
	form.SetFile(filepath.Base(path), f)
	msg, err := lib.Upload(ctx, form)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func applyEdits(ctx context.Context, ed *editor.Editor, edits fieldList) {
	if !ed.Active() {
		fmt.Println("selected asset is not a loaded 3D model")
		return
	}
	for _, e := range edits {
		if err := ed.OnFieldChange(e.field, e.raw); err != nil {
			fmt.Println(err)
			return
		}
	}
	if _, err := ed.Commit(ctx); err != nil {
		fmt.Printf("commit transform: %v\n", err)
		return
	}
	fmt.Println("transform saved")
}

func printAssets(sess *holodeck.Session) {
	snap := sess.Store.Snapshot()
	if snap.Err != nil {
		fmt.Printf("error: %v\n", snap.Err)
	}
	fmt.Printf("%d assets\n", len(snap.Assets))
	for _, a := range snap.Assets {
		mark := " "
		if snap.Selected != nil && snap.Selected.ID == a.ID {
			mark = "*"
		}
		fmt.Printf("%s %4d  %-9s %-24s %s\n", mark, a.ID, a.AssetType, a.Name, a.FilePath)
	}
	for _, t := range sess.Mixer.Tracks() {
		state := "paused"
		if t.Playing {
			state = "playing"
		}
		fmt.Printf("  track %d %s vol=%.2f %s\n", t.AssetID, t.Name, t.Volume, state)
	}
}

func printScene(sess *holodeck.Session) {
	ids := sess.Sync.BoundIDs()
	fmt.Printf("%d models in scene\n", len(ids))
	for _, id := range ids {
		p, ok := sess.Sync.Pose(id)
		if !ok {
			continue
		}
		fmt.Printf("  %4d pos=(%.2f, %.2f, %.2f) rot=(%.3f, %.3f, %.3f) scale=(%.2f, %.2f, %.2f)\n",
			id, p.Position[0], p.Position[1], p.Position[2],
			p.Rotation[0], p.Rotation[1], p.Rotation[2],
			p.Scale[0], p.Scale[1], p.Scale[2])
	}
}

func sceneDigest(sess *holodeck.Session) string {
	var b strings.Builder
	for _, id := range sess.Sync.BoundIDs() {
		if p, ok := sess.Sync.Pose(id); ok {
			fmt.Fprintf(&b, "%d:%v;", id, p)
		}
	}
	return b.String()
}
