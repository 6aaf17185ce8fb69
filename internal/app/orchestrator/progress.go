package orchestrator

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer
}

// ProgressManager draws per-chunk progress bars for the CLI.
type ProgressManager struct {
	container *mpb.Progress
	enabled   bool
	mu        sync.Mutex
	bars      []*ProgressBar
}

type ProgressBar struct {
	bar     *mpb.Bar
	enabled bool
}

func NewProgressManager(config ProgressConfig) *ProgressManager {
	if !config.Enabled {
		return &ProgressManager{enabled: false}
	}

	writer := config.Writer
	if writer == nil {
		writer = os.Stderr
	}

	container := mpb.New(
		mpb.WithOutput(writer),
		mpb.WithRefreshRate(120*time.Millisecond),
		mpb.WithWaitGroup(&sync.WaitGroup{}),
	)

	return &ProgressManager{
		container: container,
		enabled:   true,
	}
}

func (pm *ProgressManager) CreateBar(total int, description string) *ProgressBar {
	if !pm.enabled || pm.container == nil {
		return &ProgressBar{enabled: false}
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	bar := pm.container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(description+" ", decor.WC{W: len(description) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("(%d/%d chunks)", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.NewPercentage("%.1f", decor.WCSyncSpace),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncWidth), " ✓ ",
			),
		),
	)

	pb := &ProgressBar{bar: bar, enabled: true}
	pm.bars = append(pm.bars, pb)
	return pb
}

// Observer returns a callback for WithObserver. The bar is created on the
// first call, once the number of chunks is known.
func (pm *ProgressManager) Observer(description string) func(done, total int) {
	var bar *ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = pm.CreateBar(total, description)
		}
		bar.SetCurrent(int64(done))
		if done >= total {
			bar.Complete()
		}
	}
}

func (pb *ProgressBar) SetCurrent(current int64) {
	if pb.enabled && pb.bar != nil {
		pb.bar.SetCurrent(current)
	}
}

func (pb *ProgressBar) Complete() {
	if pb.enabled && pb.bar != nil {
		pb.bar.SetTotal(pb.bar.Current(), true)
	}
}

// Abort stops the bar where it is, leaving it on screen.
func (pb *ProgressBar) Abort() {
	if pb.enabled && pb.bar != nil && !pb.bar.Completed() {
		pb.bar.Abort(false)
	}
}

// Finish aborts unfinished bars when the job failed and waits for rendering to end.
func (pm *ProgressManager) Finish(succeeded bool) {
	if !pm.enabled || pm.container == nil {
		return
	}
	pm.mu.Lock()
	bars := append([]*ProgressBar(nil), pm.bars...)
	pm.mu.Unlock()

	for _, bar := range bars {
		if !succeeded {
			bar.Abort()
		}
	}
	pm.container.Wait()
}

func IsTTY(writer io.Writer) bool {
	if writer == nil {
		return false
	}

	if file, ok := writer.(*os.File); ok {
		stat, err := file.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func ShouldShowProgress(forced bool) bool {
	if forced {
		return true
	}

	return IsTTY(os.Stderr) || IsTTY(os.Stdout)
}
