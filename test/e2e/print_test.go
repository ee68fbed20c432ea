//go:build e2e

package e2e

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/dittolpd/pkg/client"
)

// TestSubmitSingleFile submits one file and reads it back from the spool
func TestSubmitSingleFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		receipt, err := tc.SubmitText(QueueDefault, "Hello, printer!\n")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		list := tc.Jobs(QueueDefault)
		if len(list) != 1 {
			t.Fatalf("Expected 1 job, got %d", len(list))
		}
		job := list[0]

		if job.Number != receipt.Number {
			t.Errorf("Expected job number %d, got %d", receipt.Number, job.Number)
		}
		if job.Owner != "e2e" || job.Host != "e2ehost" {
			t.Errorf("Unexpected owner/host: %s@%s", job.Owner, job.Host)
		}
		if job.ControlFile.Name != receipt.ControlFile {
			t.Errorf("Expected control file %s, got %s", receipt.ControlFile, job.ControlFile.Name)
		}
		if len(job.DataFiles) != 1 {
			t.Fatalf("Expected 1 data file, got %d", len(job.DataFiles))
		}

		data := tc.ReadJobFile(job.ID, job.DataFiles[0].Name)
		if string(data) != "Hello, printer!\n" {
			t.Errorf("Unexpected data file content: %q", data)
		}
	})
}

// TestSubmitMultipleFiles submits a job with three data files
func TestSubmitMultipleFiles(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		texts := []string{"first page\n", "second page\n", "third page\n"}
		receipt, err := tc.SubmitText(QueueDefault, texts...)
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if len(receipt.DataFiles) != len(texts) {
			t.Fatalf("Expected %d data files in receipt, got %d", len(texts), len(receipt.DataFiles))
		}

		list := tc.Jobs(QueueDefault)
		if len(list) != 1 {
			t.Fatalf("Expected 1 job, got %d", len(list))
		}

		var total int64
		for i, name := range receipt.DataFiles {
			data := tc.ReadJobFile(list[0].ID, name)
			if string(data) != texts[i] {
				t.Errorf("File %s: expected %q, got %q", name, texts[i], data)
			}
			total += int64(len(texts[i]))
		}
		if list[0].Size() != total {
			t.Errorf("Expected job size %d, got %d", total, list[0].Size())
		}
	})
}

// TestSubmitDataFirst sends data files before the control file
func TestSubmitDataFirst(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		payload := "data before control\n"
		_, err := tc.Client.Submit(tc.Context(), QueueRaw, &client.Job{
			Title:     "data-first",
			DataFirst: true,
			Files: []client.File{{
				Name:   "report.txt",
				Data:   strings.NewReader(payload),
				Size:   int64(len(payload)),
				Format: 'f',
			}},
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		list := tc.Jobs(QueueRaw)
		if len(list) != 1 {
			t.Fatalf("Expected 1 job, got %d", len(list))
		}
		if list[0].Title != "data-first" {
			t.Errorf("Expected title from control file, got %q", list[0].Title)
		}
		if list[0].DataFiles[0].Format != 'f' {
			t.Errorf("Expected format 'f', got %q", list[0].DataFiles[0].Format)
		}
	})
}

// TestSubmitLargeFile streams a payload larger than one S3 part
func TestSubmitLargeFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		payload := make([]byte, 12*1024*1024)
		if _, err := rand.Read(payload); err != nil {
			t.Fatalf("Failed to generate payload: %v", err)
		}

		_, err := tc.Client.Submit(tc.Context(), QueueRaw, &client.Job{
			Files: []client.File{{
				Name: "large.bin",
				Data: bytes.NewReader(payload),
				Size: int64(len(payload)),
			}},
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		list := tc.Jobs(QueueRaw)
		if len(list) != 1 {
			t.Fatalf("Expected 1 job, got %d", len(list))
		}
		data := tc.ReadJobFile(list[0].ID, list[0].DataFiles[0].Name)
		if !bytes.Equal(data, payload) {
			t.Errorf("Stored payload differs (got %d bytes, want %d)", len(data), len(payload))
		}
	})
}

// TestSubmitRefused checks the refusals a client sees as a negative ack
func TestSubmitRefused(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		for _, queue := range []string{QueueHeld, "no-such-queue"} {
			_, err := tc.SubmitText(queue, "refused\n")

			var ackErr *client.AckError
			if !errors.As(err, &ackErr) {
				t.Fatalf("Queue %s: expected *client.AckError, got %v", queue, err)
			}
			if ackErr.Stage != "job" {
				t.Errorf("Queue %s: expected refusal of the job, got stage %q", queue, ackErr.Stage)
			}
		}

		if n := len(tc.Jobs(QueueHeld)); n != 0 {
			t.Errorf("Expected no jobs in locked queue, got %d", n)
		}
	})
}
