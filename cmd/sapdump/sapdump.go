//   Copyright 2017 Anatole Denis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// sapdump is a tool to display information on received SAP announcements.
package main

import (
	"fmt"
	"net"
	"os"
	"path"
	"text/template"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/tschiemer/aes67-core/sap"
	"github.com/tschiemer/aes67-core/sapsrv"
	"github.com/tschiemer/aes67-core/sdp"
)

const defFormat = "[{{.Event}}] {{.Name}} ({{.Origin}}) hash={{printf \"%04x\" .Hash}}\n"

// displayRecord is the template context for -format: one line per event,
// not the raw sap.Session (whose Payload is opaque bytes and whose SDP
// document needs an explicit parse, done once here).
type displayRecord struct {
	Event  string
	Name   string
	Origin string
	Hash   uint16
}

// runTermui is supplied by saptop.go when built with -tags curses; left
// nil otherwise.
var runTermui func(svc *sapsrv.Service)

func main() {
	isTop := path.Base(os.Args[0]) == "saptop"

	format := pflag.String("format", defFormat, "Format string following text/template for dumping SAP announcements")
	curses := pflag.Bool("curses", isTop, `Display continuous stats instead of dumping incoming announcements (aka "saptop")`)
	scopes := pflag.StringSlice("scopes", nil, "Comma-separated scopes to listen on: link,site,org,global,v4 (default: all)")
	group := pflag.StringSlice("group", nil, "Comma-separated multicast group(s) to listen on, overriding -scopes")
	iface := pflag.String("i", "", "Force binding to a specific interface for multicast group membership")
	port := pflag.Int("port", sapsrv.SAPPort, "UDP port to listen on")
	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := sapsrv.Config{Scopes: *scopes, Interface: *iface, Port: *port}

	var svc *sapsrv.Service
	var err error
	if len(*group) > 0 {
		svc, err = newServiceWithGroups(cfg, *group, log)
	} else {
		svc, err = sapsrv.New(cfg, nil, log)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("could not start SAP listener")
	}
	defer svc.Close()

	if *curses {
		if runTermui == nil {
			log.Fatal().Msg("built without curses support; rebuild with -tags curses")
		}
		runTermui(svc)
		return
	}

	tmpl, err := template.New("format").Parse(*format)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -format template")
	}

	svc.Engine.OnEvent = func(event sap.Event, s *sap.Session) {
		rec := displayRecord{
			Event:  event.String(),
			Name:   sessionName(s),
			Origin: s.Origin.Format(),
			Hash:   s.Hash,
		}
		if err := tmpl.Execute(os.Stdout, rec); err != nil {
			log.Fatal().Err(err).Msg("template execution failed")
		}
	}

	for {
		if err := svc.ServeOne(); err != nil {
			log.Error().Err(err).Msg("error reading SAP datagram")
		}
	}
}

// newServiceWithGroups starts a Service directly on the raw group
// addresses in groupList, bypassing sapsrv.ScopeGroups's named-scope
// resolution (used when -group is given explicitly on the command line).
func newServiceWithGroups(cfg sapsrv.Config, groupList []string, log zerolog.Logger) (*sapsrv.Service, error) {
	addrs := make([]net.IP, len(groupList))
	for i, g := range groupList {
		ip := net.ParseIP(g)
		if ip == nil {
			return nil, fmt.Errorf("invalid -group address %q", g)
		}
		addrs[i] = ip
	}
	port := cfg.Port
	if port == 0 {
		port = sapsrv.SAPPort
	}
	l, err := sapsrv.Listen(addrs, port, cfg.Interface)
	if err != nil {
		return nil, err
	}
	return sapsrv.NewFromListener(l, nil, log), nil
}

func sessionName(s *sap.Session) string {
	doc, err := sdp.Unmarshal(s.Payload, sdp.Options{})
	if err != nil || doc.SessionName == "" {
		return "?"
	}
	return doc.SessionName
}
