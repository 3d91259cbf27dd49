// Package process provides subprocess lifecycle management.
//
// Process wraps os/exec for a single subprocess:
//   - Synchronous start, so exec failures surface as errors
//   - Graceful stop with SIGINT and a force kill after a timeout
//   - Stderr logging with pluggable log level parsing
//   - Optional binary stdout consumer for raw media output
//
// Pool manages named processes with state tracking (idle, starting, running,
// stopping, error) and a state change callback. Capture backends use it to
// run one ffmpeg per captured window:
//
//	pool := process.NewPool(&process.PoolOptions{
//	    CommandProvider: func(id string) (string, error) {
//	        return ffmpeg.ExpandTemplate(template, &ffmpeg.Params{Window: id})
//	    },
//	    OnStateChange: func(id string, old, new process.State, err error) {
//	        log.Printf("capture %s: %s -> %s", id, old, new)
//	    },
//	})
//	if err := pool.Start("draw Image1"); err != nil {
//	    return err
//	}
//	defer pool.StopAll()
package process
