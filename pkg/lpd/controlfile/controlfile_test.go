package controlfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Control file sent by a z/OS print subsystem.
const mainframeControlFile = "HSYSB\n" +
	"PVPSEXT90\n" +
	"ldfA963SYSB\n" +
	"UdfA963SYSB\n" +
	"NJOBID=J0009920,LISTE=PA005H01.SYSUT2\n" +
	"-occ=no\n" +
	"-ocop=1\n" +
	"-odatat=l\n" +
	"-ojobn=B996030U\n" +
	"-ono=PNPXJES2\n" +
	"-opa=forms=0010,class=K,destination=LOCAL\n" +
	"-opr=W.BERTHOLD.:2869\n" +
	"-ous=B996030\n" +
	"-ochars=GT10\n" +
	"-opagedef=P10010\n" +
	"-oti=Test\x1cDruck\x1cBerthold\x1cPR\n" +
	"-otrc=no\n" +
	"-ofileformat=record\n" +
	"-of=F1STD1\n" +
	"-ona=W.BERTHOLD.:2869\n" +
	"-oe_ti=E385A2A340C499A4839240C28599A38896938440D7D9\n"

func TestParseMainframeControlFile(t *testing.T) {
	require.Len(t, mainframeControlFile, 383)

	cf, err := Parse([]byte(mainframeControlFile))
	require.NoError(t, err)

	assert.Equal(t, "SYSB", cf.Host)
	assert.Equal(t, "VPSEXT90", cf.User)
	assert.Equal(t, "JOBID=J0009920,LISTE=PA005H01.SYSUT2", cf.SourceName)
	assert.Equal(t, []PrintFile{{Format: FormatLiteral, Name: "dfA963SYSB"}}, cf.Print)
	assert.Equal(t, []string{"dfA963SYSB"}, cf.Unlink)
	assert.Equal(t, []string{"dfA963SYSB"}, cf.DataFiles())

	assert.Len(t, cf.Options, 16)
	assert.Equal(t, "no", cf.Options["cc"])
	assert.Equal(t, "1", cf.Options["cop"])
	assert.Equal(t, "forms=0010,class=K,destination=LOCAL", cf.Options["pa"])
	assert.Equal(t, "Test\x1cDruck\x1cBerthold\x1cPR", cf.Options["ti"])
	assert.Equal(t, "F1STD1", cf.Options["f"])
	assert.Empty(t, cf.Extra)
}

func TestParseAllCommands(t *testing.T) {
	raw := "Hprinthost\nPalice\nJreport\nCA\nLalice\nTQuarterly\nMalice@example.com\n" +
		"Nreport.txt\nI8\nW132\n1R.font\n2I.font\n3B.font\n4S.font\n" +
		"fdfA001printhost\nodfB001printhost\nUdfA001printhost\nS12 34\n" +
		"Zsomething\n-x\n"

	cf, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "printhost", cf.Host)
	assert.Equal(t, "alice", cf.User)
	assert.Equal(t, "report", cf.JobName)
	assert.Equal(t, "A", cf.Class)
	assert.Equal(t, "alice", cf.BannerUser)
	assert.Equal(t, "Quarterly", cf.Title)
	assert.Equal(t, "alice@example.com", cf.MailTo)
	assert.Equal(t, "report.txt", cf.SourceName)
	assert.Equal(t, 8, cf.Indent)
	assert.Equal(t, 132, cf.Width)
	assert.Equal(t, [4]string{"R.font", "I.font", "B.font", "S.font"}, cf.Fonts)
	assert.Equal(t, []PrintFile{
		{Format: FormatFormatted, Name: "dfA001printhost"},
		{Format: FormatPostScript, Name: "dfB001printhost"},
	}, cf.Print)
	assert.Equal(t, []string{"12 34"}, cf.Symlink)
	assert.Equal(t, []string{"Zsomething", "-x"}, cf.Extra)
	assert.Equal(t, []string{"dfA001printhost", "dfB001printhost"}, cf.DataFiles())
	assert.Equal(t, FormatPostScript, cf.FormatOf("dfB001printhost"))
	assert.Equal(t, FormatUnspecified, cf.FormatOf("dfZ001printhost"))
}

func TestParseToleratesMalformedLines(t *testing.T) {
	cf, err := Parse([]byte("Hhost\r\n\nIabc\nW-3\n-ocopies\n"))
	require.NoError(t, err)
	assert.Equal(t, "host", cf.Host)
	assert.Zero(t, cf.Indent)
	assert.Zero(t, cf.Width)
	assert.Equal(t, []string{"Iabc", "W-3"}, cf.Extra)
	v, ok := cf.Options["copies"]
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse([]byte("\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLines(t *testing.T) {
	assert.Nil(t, Lines(nil))
	assert.Equal(t, []string{"Hhost", "Puser"}, Lines([]byte("Hhost\nPuser\n")))
	assert.Equal(t, []string{"Hhost", "Puser"}, Lines([]byte("Hhost\nPuser")))
	assert.Equal(t, []string{"Tcafé"}, Lines([]byte("Tcaf\xe9\n")))
}

func TestBytesRoundTrip(t *testing.T) {
	cf := &ControlFile{
		Host:    "client",
		User:    "bob",
		JobName: "notes",
		Title:   "Grüße",
		Width:   80,
		Options: map[string]string{"cop": "2", "duplex": ""},
		Print: []PrintFile{
			{Format: FormatLiteral, Name: "dfA007client"},
			{Name: "dfB007client"},
		},
		Unlink: []string{"dfA007client", "dfB007client"},
	}

	raw := cf.Bytes()
	assert.Equal(t, "Hclient\nPbob\nJnotes\nTGr\xfc\xdfe\nW80\n-ocop=2\n-oduplex\n"+
		"ldfA007client\nldfB007client\nUdfA007client\nUdfB007client\n", string(raw))

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, cf.Title, parsed.Title)
	assert.Equal(t, cf.Options, parsed.Options)
	assert.Equal(t, []string{"dfA007client", "dfB007client"}, parsed.DataFiles())
}

func TestParseJobNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"cfA963SYSB", 963, true},
		{"dfA001host", 1, true},
		{"dfb042host", 42, true},
		{"cfA000", 0, true},
		{"cfA12", 0, false},
		{"xfA123host", 0, false},
		{"cf1123host", 0, false},
		{"cfA1x3host", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ParseJobNumber(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
	assert.Equal(t, "SYSB", HostOf("cfA963SYSB"))
	assert.Empty(t, HostOf("garbage"))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "cfA007host", ControlFileName(7, "host"))
	assert.Equal(t, "cfA234host", ControlFileName(1234, "host"))
	assert.Equal(t, "dfA007host", DataFileName(7, 0, "host"))
	assert.Equal(t, "dfZ007host", DataFileName(7, 25, "host"))
	assert.Equal(t, "dfa007host", DataFileName(7, 26, "host"))
}
