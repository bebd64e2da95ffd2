package worker

import (
	"strconv"
	"time"
)

// Options is the decoded sf_xxx/gf_xxx option table. It is deliberately
// a plain struct filled by hand-rolled getopt-style scanning rather
// than cobra/pflag: this is the worker's own positional-plus-single-
// letter grammar embedded after the five required fields, not the
// cmd/ entrypoints' top-level CLI (those do use cobra, see
// cmd/sfxxx/main.go).
type Options struct {
	AgeLimit              time.Duration // -a
	DisableArchiving      bool          // -A
	HardwareCRC           bool          // -c
	Charset               string        // -C
	DEMailSender          string        // -D
	DistributedHelper     bool          // -d
	DisconnectIdleSeconds time.Duration // -e
	SMTPFrom              string        // -f
	GroupMailDomain       string        // -g
	HTTPProxy             string        // -h
	RetryInterval         time.Duration // -i
	CreateTargetDirMode   uint32        // -m
	CreateTargetDir       bool          // -m presence
	OldJobRetries         int           // -o
	ResendFromArchive     bool          // -r
	SMTPReplyTo           string        // -R
	SMTPServer            string        // -s
	Simulation            bool          // -S
	ToggleHost            bool          // -t
}

// ParseOptions scans argv, the tail of Args.Options, for the presence-or-
// valued flags above. Unknown flags are a syntax error. Every valued
// flag here (-a/-C/-D/-e/-f/-g/-h/-i/-m/-o/-R/-s) uniformly consumes
// exactly two argv entries (the flag and its argument) and every
// presence flag consumes exactly one, resolving the -e ambiguity the
// same way as every other valued flag rather than special-casing it.
func ParseOptions(argv []string) (*Options, error) {
	opts := &Options{}
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if len(arg) < 2 || arg[0] != '-' {
			return nil, syntaxErrorf("unexpected option token %q", arg)
		}

		needsValue := func() (string, error) {
			if i+1 >= len(argv) {
				return "", syntaxErrorf("option %q requires an argument", arg)
			}
			i++
			return argv[i], nil
		}

		switch arg {
		case "-a":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			secs, err := strconv.Atoi(v)
			if err != nil {
				return nil, syntaxErrorf("invalid -a value %q", v)
			}
			opts.AgeLimit = time.Duration(secs) * time.Second
		case "-A":
			opts.DisableArchiving = true
		case "-c":
			opts.HardwareCRC = true
		case "-C":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.Charset = v
		case "-D":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.DEMailSender = v
		case "-d":
			opts.DistributedHelper = true
		case "-e":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			secs, err := strconv.Atoi(v)
			if err != nil {
				return nil, syntaxErrorf("invalid -e value %q", v)
			}
			opts.DisconnectIdleSeconds = time.Duration(secs) * time.Second
		case "-f":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.SMTPFrom = v
		case "-g":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.GroupMailDomain = v
		case "-h":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.HTTPProxy = v
		case "-i":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			secs, err := strconv.Atoi(v)
			if err != nil {
				return nil, syntaxErrorf("invalid -i value %q", v)
			}
			opts.RetryInterval = time.Duration(secs) * time.Second
		case "-m":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			if len(v) < 3 || len(v) > 4 {
				return nil, syntaxErrorf("-m mode %q must be 3 or 4 octal digits", v)
			}
			mode, err := strconv.ParseUint(v, 8, 32)
			if err != nil {
				return nil, syntaxErrorf("invalid -m octal mode %q", v)
			}
			opts.CreateTargetDirMode = uint32(mode)
			opts.CreateTargetDir = true
		case "-o":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			retries, err := strconv.Atoi(v)
			if err != nil {
				return nil, syntaxErrorf("invalid -o value %q", v)
			}
			opts.OldJobRetries = retries
		case "-r":
			opts.ResendFromArchive = true
		case "-R":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.SMTPReplyTo = v
		case "-s":
			v, err := needsValue()
			if err != nil {
				return nil, err
			}
			opts.SMTPServer = v
		case "-S":
			opts.Simulation = true
		case "-t":
			opts.ToggleHost = true
		default:
			return nil, syntaxErrorf("unrecognised option %q", arg)
		}
	}
	return opts, nil
}
