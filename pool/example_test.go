package pool_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/jirevwe/threadpool/pool"
)

func ExampleWorkerPool() {
	p, err := pool.NewWorkerPool(4, pool.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		panic(err)
	}
	defer p.Close()

	var served atomic.Int64
	for i := 0; i < 6; i++ {
		if err := p.Execute(func() { served.Add(1) }); err != nil {
			panic(err)
		}
	}

	// one poll per submitted job
	for i := 0; i < 6; i++ {
		if _, err := p.UpdatedJobCount(); err != nil {
			panic(err)
		}
	}

	_ = p.Stop()
	fmt.Println("job count:", p.JobCount())
	fmt.Println("served:", served.Load())

	// Output:
	// job count: 6
	// served: 6
}
