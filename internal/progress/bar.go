package progress

import (
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// Bar renders progress samples as a terminal progress bar. Used by the
// one-shot CLI; the server reports progress through the task store instead.
type Bar struct {
	bar   *progressbar.ProgressBar
	total int64
}

func NewBar(description string) *Bar {
	bar := progressbar.NewOptions64(
		-1,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetDescription(description),
	)
	return &Bar{bar: bar}
}

func (b *Bar) Report(done, total int64) {
	if total > 0 && total != b.total {
		b.bar.ChangeMax64(total)
		b.total = total
	}
	_ = b.bar.Set64(done)
}

func (b *Bar) Finish() {
	_ = b.bar.Finish()
}
