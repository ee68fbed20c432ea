// Package controlfile parses and renders RFC1179 control files.
//
// A control file is a sequence of LF-terminated lines, each starting with a
// one-character command. Print-file commands name a data file of the job;
// every other command carries job metadata. Mainframe clients additionally
// send "-o" lines holding key=value options.
package controlfile

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	lpdproto "github.com/marmos91/dittolpd/internal/protocol/lpd"
)

// ErrEmpty is returned by Parse for a control file without lines.
var ErrEmpty = errors.New("controlfile: empty control file")

// Print formats of the print-file commands.
const (
	FormatFormatted   byte = 'f' // plain text with page breaks
	FormatLiteral     byte = 'l' // leave control characters
	FormatPR          byte = 'p' // print with pr(1)
	FormatPostScript  byte = 'o'
	FormatFortran     byte = 'r'
	FormatTroff       byte = 't'
	FormatDitroff     byte = 'n'
	FormatDVI         byte = 'd'
	FormatPlot        byte = 'g'
	FormatCIFPlot     byte = 'c'
	FormatRaster      byte = 'v'
	FormatUnspecified byte = 0
)

const printFormats = "flportndgcv"

// IsPrintFormat reports whether c is a print-file command.
func IsPrintFormat(c byte) bool {
	return c != 0 && strings.IndexByte(printFormats, c) >= 0
}

// PrintFile is one print-file command: print data file Name as Format.
type PrintFile struct {
	Format byte
	Name   string
}

// ControlFile is the decoded content of a control file.
type ControlFile struct {
	Host       string // H
	User       string // P
	JobName    string // J
	Class      string // C
	BannerUser string // L
	Title      string // T
	MailTo     string // M
	SourceName string // N
	Indent     int    // I
	Width      int    // W

	Fonts [4]string // 1-4: troff R, I, B, S fonts

	Print   []PrintFile
	Unlink  []string // U
	Symlink []string // S, "device inode"

	// Options holds "-okey=value" extension lines. A line without '=' maps
	// to an empty value.
	Options map[string]string

	// Extra keeps every line that is neither a known command nor an option,
	// in order.
	Extra []string
}

// Lines decodes raw as Latin-1 and splits it into lines. A trailing empty
// line (the LF after the last command) is dropped.
func Lines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	lines := strings.Split(lpdproto.DecodeLatin1(raw), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Parse decodes a control file. Malformed numeric arguments of I and W keep
// the line in Extra instead of failing the whole file.
func Parse(raw []byte) (*ControlFile, error) {
	lines := Lines(raw)
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	cf := &ControlFile{Options: map[string]string{}}
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		cf.parseLine(line)
	}
	return cf, nil
}

func (cf *ControlFile) parseLine(line string) {
	cmd, arg := line[0], line[1:]

	if IsPrintFormat(cmd) {
		cf.Print = append(cf.Print, PrintFile{Format: cmd, Name: arg})
		return
	}

	switch cmd {
	case 'H':
		cf.Host = arg
	case 'P':
		cf.User = arg
	case 'J':
		cf.JobName = arg
	case 'C':
		cf.Class = arg
	case 'L':
		cf.BannerUser = arg
	case 'T':
		cf.Title = arg
	case 'M':
		cf.MailTo = arg
	case 'N':
		cf.SourceName = arg
	case 'U':
		cf.Unlink = append(cf.Unlink, arg)
	case 'S':
		cf.Symlink = append(cf.Symlink, arg)
	case '1', '2', '3', '4':
		cf.Fonts[cmd-'1'] = arg
	case 'I', 'W':
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			cf.Extra = append(cf.Extra, line)
			return
		}
		if cmd == 'I' {
			cf.Indent = n
		} else {
			cf.Width = n
		}
	case '-':
		if !strings.HasPrefix(arg, "o") || len(arg) == 1 {
			cf.Extra = append(cf.Extra, line)
			return
		}
		key, value, _ := strings.Cut(arg[1:], "=")
		cf.Options[key] = value
	default:
		cf.Extra = append(cf.Extra, line)
	}
}

// DataFiles returns the distinct data file names referenced by print-file
// and unlink commands, in first-seen order.
func (cf *ControlFile) DataFiles() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, p := range cf.Print {
		add(p.Name)
	}
	for _, u := range cf.Unlink {
		add(u)
	}
	return names
}

// FormatOf returns the print format of data file name, or FormatUnspecified.
func (cf *ControlFile) FormatOf(name string) byte {
	for _, p := range cf.Print {
		if p.Name == name {
			return p.Format
		}
	}
	return FormatUnspecified
}

// Bytes renders the control file in the conventional command order. Options
// are written sorted by key.
func (cf *ControlFile) Bytes() []byte {
	var buf bytes.Buffer
	line := func(cmd byte, arg string) {
		buf.WriteByte(cmd)
		buf.WriteString(arg)
		buf.WriteByte('\n')
	}
	optional := func(cmd byte, arg string) {
		if arg != "" {
			line(cmd, arg)
		}
	}

	optional('H', cf.Host)
	optional('P', cf.User)
	optional('J', cf.JobName)
	optional('C', cf.Class)
	optional('L', cf.BannerUser)
	optional('T', cf.Title)
	optional('M', cf.MailTo)
	optional('N', cf.SourceName)
	if cf.Indent > 0 {
		line('I', strconv.Itoa(cf.Indent))
	}
	if cf.Width > 0 {
		line('W', strconv.Itoa(cf.Width))
	}
	for i, font := range cf.Fonts {
		optional(byte('1'+i), font)
	}

	keys := make([]string, 0, len(cf.Options))
	for k := range cf.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := cf.Options[k]; v != "" {
			line('-', fmt.Sprintf("o%s=%s", k, v))
		} else {
			line('-', "o"+k)
		}
	}

	for _, p := range cf.Print {
		format := p.Format
		if !IsPrintFormat(format) {
			format = FormatLiteral
		}
		line(format, p.Name)
	}
	for _, u := range cf.Unlink {
		line('U', u)
	}
	for _, s := range cf.Symlink {
		line('S', s)
	}
	for _, e := range cf.Extra {
		buf.WriteString(e)
		buf.WriteByte('\n')
	}

	out, err := lpdproto.EncodeLatin1(buf.String())
	if err != nil {
		return buf.Bytes()
	}
	return out
}

// ParseJobNumber extracts the job number from a control or data file name of
// the form "cfA<nnn><host>" or "dfA<nnn><host>".
func ParseJobNumber(name string) (int, bool) {
	if len(name) < 6 {
		return 0, false
	}
	prefix := name[:2]
	if prefix != "cf" && prefix != "df" {
		return 0, false
	}
	if c := name[2]; (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
		return 0, false
	}
	digits := name[3:6]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, _ := strconv.Atoi(digits)
	return n, true
}

// HostOf returns the host part of a control or data file name, the text
// following "cfA<nnn>".
func HostOf(name string) string {
	if _, ok := ParseJobNumber(name); !ok {
		return ""
	}
	return name[6:]
}

// ControlFileName builds the control file name for job number n from host.
func ControlFileName(n int, host string) string {
	return fmt.Sprintf("cfA%03d%s", n%1000, host)
}

// DataFileName builds the name of the i-th (0-based) data file of job n.
// Letters run A..Z then a..z, as BSD lpr does.
func DataFileName(n, i int, host string) string {
	letter := byte('A')
	switch {
	case i < 26:
		letter = byte('A' + i)
	case i < 52:
		letter = byte('a' + i - 26)
	}
	return fmt.Sprintf("df%c%03d%s", letter, n%1000, host)
}
