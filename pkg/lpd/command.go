// Package lpd defines the public contract of the line printer daemon:
// the command codes of RFC1179, the Handler that receives decoded
// requests, and the error taxonomy shared by the protocol engine and the
// server.
package lpd

import "fmt"

// DefaultPort is the well-known TCP port of the line printer daemon.
const DefaultPort = 515

// Acknowledgement bytes sent by the daemon while receiving a print job.
const (
	AckPositive byte = 0x00
	AckNegative byte = 0x01
)

// Terminator is the byte a client sends after every file payload.
const Terminator byte = 0x00

// Command is the first byte of every LPD connection.
type Command byte

const (
	CmdPrintJobs         Command = 0x01
	CmdReceivePrinterJob Command = 0x02
	CmdQueueStateShort   Command = 0x03
	CmdQueueStateLong    Command = 0x04
	CmdRemoveJobs        Command = 0x05
)

// Valid reports whether c is one of the five daemon commands.
func (c Command) Valid() bool {
	return c >= CmdPrintJobs && c <= CmdRemoveJobs
}

func (c Command) String() string {
	switch c {
	case CmdPrintJobs:
		return "PrintJobs"
	case CmdReceivePrinterJob:
		return "ReceivePrinterJob"
	case CmdQueueStateShort:
		return "QueueStateShort"
	case CmdQueueStateLong:
		return "QueueStateLong"
	case CmdRemoveJobs:
		return "RemoveJobs"
	default:
		return fmt.Sprintf("Command(0x%02x)", byte(c))
	}
}

// SubCommand is a byte read inside the ReceivePrinterJob sub-protocol.
type SubCommand byte

const (
	SubAbortJob           SubCommand = 0x01
	SubReceiveControlFile SubCommand = 0x02
	SubReceiveDataFile    SubCommand = 0x03
)

// Valid reports whether s is one of the three receive-job sub-commands.
func (s SubCommand) Valid() bool {
	return s >= SubAbortJob && s <= SubReceiveDataFile
}

func (s SubCommand) String() string {
	switch s {
	case SubAbortJob:
		return "AbortJob"
	case SubReceiveControlFile:
		return "ReceiveControlFile"
	case SubReceiveDataFile:
		return "ReceiveDataFile"
	default:
		return fmt.Sprintf("SubCommand(0x%02x)", byte(s))
	}
}

// FileKind distinguishes the two payload types of a print job.
type FileKind int

const (
	ControlFile FileKind = iota
	DataFile
)

func (k FileKind) String() string {
	if k == ControlFile {
		return "control"
	}
	return "data"
}
