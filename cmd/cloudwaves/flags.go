package main

import (
	"errors"
	"io"

	flag "github.com/spf13/pflag"
)

// options are the command line flags.
type options struct {
	login    string
	phone    bool
	logout   bool
	playlist string
}

// accountCommand reports whether the run only manages the saved account.
func (o options) accountCommand() bool {
	return o.login != "" || o.logout
}

func parseFlags(args []string, usage io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("cloudwaves", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&o.login, "login", "", "sign in with `account` and exit")
	fs.BoolVar(&o.phone, "phone", false, "the --login account is a phone number")
	fs.BoolVar(&o.logout, "logout", false, "sign out, forget the saved account and exit")
	fs.StringVarP(&o.playlist, "playlist", "p", "", "play the playlist `id` on startup")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	switch {
	case o.login != "" && o.logout:
		return options{}, errors.New("--login and --logout cannot be combined")
	case o.phone && o.login == "":
		return options{}, errors.New("--phone requires --login")
	case o.accountCommand() && o.playlist != "":
		return options{}, errors.New("--playlist cannot be combined with account commands")
	}
	return o, nil
}
