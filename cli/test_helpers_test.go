package cli

import (
	"bytes"
	"io"
	"os"
)

// captureOutput returns what f prints to stdout. The pipe is drained while f
// runs so long outputs cannot block it.
func captureOutput(f func()) string {
	orig := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	defer func() { os.Stdout = orig }()
	f()
	w.Close()
	return <-done
}
