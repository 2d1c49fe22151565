package infra

import (
	"context"
	"sync"
	"time"
)

// janitor roda uma limpeza periódica até o ctx terminar ou Stop ser chamado.
type janitor struct {
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func newJanitor() *janitor {
	return &janitor{stopCh: make(chan struct{})}
}

func (j *janitor) start(ctx context.Context, every time.Duration, fn func()) {
	if every <= 0 {
		return
	}
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-j.stopCh:
					return
				case <-t.C:
					fn()
				}
			}
		}()
	})
}

// Stop encerra o janitor e espera a goroutine sair. Pode ser chamado mais de uma vez.
func (j *janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}
