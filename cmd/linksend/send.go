package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/aoalink/internal/logging"
)

// sender is the host end of a link: aoa.Bridge over USB or netpeer.Stream over TCP.
// Close ends the stream with the sentinel.
type sender interface {
	WriteFrame(payload []byte) error
	Close() error
}

// send writes each file as one frame and then closes s. With a non-nil prompt it
// waits for a line on prompt before every file after the first.
func send(ctx context.Context, s sender, files []string, prompt io.Reader) (err error) {
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	var lines *bufio.Reader
	if prompt != nil {
		lines = bufio.NewReader(prompt)
	}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lines != nil && i > 0 {
			logging.Infof("linksend press Enter to send next=%s", path)
			if _, err := lines.ReadString('\n'); err != nil && err != io.EOF {
				return fmt.Errorf("read prompt: %w", err)
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if len(data) == 0 {
			logging.Warnf("linksend skipping empty file path=%s", path)
			continue
		}
		if err := s.WriteFrame(data); err != nil {
			return fmt.Errorf("send %s: %w", path, err)
		}
		logging.Infof("linksend sent path=%s size=%d", path, len(data))
	}
	return nil
}
