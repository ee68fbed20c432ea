package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/marmos91/dittolpd/pkg/lpd"
	"github.com/marmos91/dittolpd/pkg/lpd/controlfile"
)

// File is one data file of a job.
type File struct {
	// Name is the source file name reported in the control file (N).
	Name string

	// Data supplies exactly Size bytes.
	Data io.Reader
	Size int64

	// Format is the print format letter; zero means 'l' (print as is).
	Format byte
}

// Job describes a print job to submit.
type Job struct {
	// Number is the job number (0-999); zero picks the next local number.
	Number int

	// User overrides the client's user for this job.
	User    string
	JobName string
	Title   string
	Class   string

	// Banner requests a banner page for User.
	Banner bool

	// Options become "-o" extension lines of the control file.
	Options map[string]string

	Files []File

	// DataFirst sends the data files before the control file.
	DataFirst bool
}

// Receipt names what the daemon accepted.
type Receipt struct {
	Number      int
	ControlFile string
	DataFiles   []string
}

// Submit sends a job with command 02 and waits until the daemon has closed
// the connection, so the job is complete on the server when Submit returns.
// A negative acknowledgement is reported as *AckError.
func (c *Client) Submit(ctx context.Context, queue string, job *Job) (*Receipt, error) {
	if job == nil || len(job.Files) == 0 {
		return nil, errors.New("submit: job has no files")
	}
	for i, f := range job.Files {
		if f.Data == nil || f.Size < 0 {
			return nil, fmt.Errorf("submit: file %d needs data and a size", i)
		}
	}

	number := c.jobNumber(job.Number)
	cf, receipt := c.buildControlFile(number, job)
	control := cf.Bytes()

	err := c.exchange(ctx, func(conn net.Conn) error {
		if err := writeCommand(conn, lpd.CmdReceivePrinterJob, queue, nil); err != nil {
			return err
		}
		if err := readAck(conn, "job", ""); err != nil {
			return err
		}

		sendControl := func() error {
			return sendFile(conn, lpd.SubReceiveControlFile, receipt.ControlFile, bytes.NewReader(control), int64(len(control)))
		}
		sendData := func() error {
			for i, f := range job.Files {
				if err := sendFile(conn, lpd.SubReceiveDataFile, receipt.DataFiles[i], f.Data, f.Size); err != nil {
					return err
				}
			}
			return nil
		}

		steps := []func() error{sendControl, sendData}
		if job.DataFirst {
			steps = []func() error{sendData, sendControl}
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}

		if err := closeWrite(conn); err != nil {
			return err
		}
		return awaitClose(conn)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) buildControlFile(number int, job *Job) (*controlfile.ControlFile, *Receipt) {
	user := job.User
	if user == "" {
		user = c.config.User
	}
	host := c.config.Host

	cf := &controlfile.ControlFile{
		Host:    host,
		User:    user,
		JobName: job.JobName,
		Title:   job.Title,
		Class:   job.Class,
		Options: job.Options,
	}
	if job.Banner {
		cf.BannerUser = user
	}

	receipt := &Receipt{
		Number:      number,
		ControlFile: controlfile.ControlFileName(number, host),
	}
	for i, f := range job.Files {
		name := controlfile.DataFileName(number, i, host)
		receipt.DataFiles = append(receipt.DataFiles, name)

		format := f.Format
		if format == controlfile.FormatUnspecified {
			format = controlfile.FormatLiteral
		}
		cf.Print = append(cf.Print, controlfile.PrintFile{Format: format, Name: name})
		cf.Unlink = append(cf.Unlink, name)
		if i == 0 && f.Name != "" {
			cf.SourceName = f.Name
		}
	}
	return cf, receipt
}

// sendFile runs one sub-command: descriptor, ack, payload, terminator, ack.
func sendFile(conn net.Conn, sub lpd.SubCommand, name string, data io.Reader, size int64) error {
	stage := "data file"
	if sub == lpd.SubReceiveControlFile {
		stage = "control file"
	}

	header := append([]byte{byte(sub)}, strconv.FormatInt(size, 10)+" "+name+"\n"...)
	if _, err := conn.Write(header); err != nil {
		return fmt.Errorf("send %s header: %w", stage, err)
	}
	if err := readAck(conn, stage, name); err != nil {
		return err
	}

	n, err := io.Copy(conn, io.LimitReader(data, size))
	if err != nil {
		return fmt.Errorf("send %s %s: %w", stage, name, err)
	}
	if n != size {
		return fmt.Errorf("send %s %s: source ended after %d of %d bytes", stage, name, n, size)
	}
	if _, err := conn.Write([]byte{lpd.Terminator}); err != nil {
		return fmt.Errorf("send %s terminator: %w", stage, err)
	}
	return readAck(conn, stage, name)
}
