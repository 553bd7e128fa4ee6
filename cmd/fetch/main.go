// Command fetch downloads a single media URL to a local file, running the
// same provider chain as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/olastephen/video-audio-downloader/internal/progress"
	"github.com/olastephen/video-audio-downloader/internal/provider"
)

func main() {
	var (
		outDir  = flag.String("o", ".", "output directory")
		quality = flag.String("quality", "best", "quality selector (best, worst or a raw format string)")
		format  = flag.String("format", "", "preferred container format (mp4, webm, ...)")
		audio   = flag.Bool("audio", false, "extract audio only")
		direct  = flag.Bool("direct", false, "fetch the URL bytes as-is, no extraction")
		timeout = flag.Duration("timeout", 30*time.Minute, "per-provider timeout")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <url>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	rawURL := flag.Arg(0)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	opts := provider.Options{
		Quality:        *quality,
		Format:         *format,
		AudioOnly:      *audio,
		DirectDownload: *direct,
	}

	providers := []provider.Provider{
		provider.NewYtDLP(),
		provider.NewNativeYouTube(),
		provider.NewYoutubeDL(),
		provider.NewDirect(),
	}

	tag, chain := provider.Resolve(rawURL, opts, providers)
	if len(chain) == 0 {
		fmt.Fprintf(os.Stderr, "no provider can handle this URL (%s)\n", tag)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, prov := range chain {
		dest, err := fetchWith(ctx, prov, rawURL, opts, *outDir, *timeout)
		if err == nil {
			fmt.Printf("\nsaved %s\n", dest)
			return
		}
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "\n%s: %v\n", prov.Name(), err)
	}

	fmt.Fprintf(os.Stderr, "all %d provider(s) failed\n", len(chain))
	os.Exit(1)
}

func fetchWith(ctx context.Context, prov provider.Provider, rawURL string, opts provider.Options, outDir string, timeout time.Duration) (string, error) {
	workDir, err := os.MkdirTemp("", "fetch-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)
	opts.WorkDir = workDir

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bar := progress.NewBar(prov.Name())
	defer bar.Finish()

	artifact, err := prov.Fetch(ctx, rawURL, opts, bar)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(outDir, artifact.Filename)
	if artifact.Stream != nil {
		err = writeStream(dest, artifact.Stream)
	} else {
		err = copyFile(dest, artifact.LocalPath)
	}
	if err != nil {
		return "", err
	}
	return dest, nil
}

func writeStream(dest string, stream io.ReadCloser) error {
	defer stream.Close()
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

// copyFile moves a staged artifact out of the temp dir. Plain copy, since
// the staging dir may sit on a different filesystem than the destination.
func copyFile(dest, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return writeStream(dest, in)
}
