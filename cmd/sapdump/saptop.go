//go:build curses

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

package main

import (
	"strconv"
	"time"

	"github.com/LINBIT/termui"
	"github.com/emirpasic/gods/sets/treeset"
	godsutils "github.com/emirpasic/gods/utils"

	"github.com/tschiemer/aes67-core/host"
	"github.com/tschiemer/aes67-core/sap"
	"github.com/tschiemer/aes67-core/sapsrv"
	"github.com/tschiemer/aes67-core/sdp"
)

const timeResolution = time.Second

func init() {
	runTermui = runTermuiImpl
}

// row is one line of the saptop table, derived from a sap.Session snapshot.
type row struct {
	name  string
	hash  uint16
	group string
}

func runTermuiImpl(svc *sapsrv.Service) {
	if err := termui.Init(); err != nil {
		panic(err)
	}
	defer termui.Close()

	tbl := termui.NewTable()
	tbl.Separator = false
	tbl.Border = false
	tbl.Width = termui.TermWidth()
	tbl.Height = termui.TermHeight()

	evchan := termui.NewSysEvtCh()
	termui.Merge("user events", evchan)
	go func() {
		for {
			if err := svc.ServeOne(); err != nil {
				return
			}
			evchan <- termui.Event{
				Path: "/net/recv",
				Time: time.Now().Unix(),
				Data: nil,
			}
		}
	}()

	termui.Handle("/net/recv", func(termui.Event) {
		updateDisplay(tbl, svc)
	})
	termui.Handle("/timers/1s", func(termui.Event) {
		updateDisplay(tbl, svc)
	})
	termui.Handle("/sys/kbd/q", func(termui.Event) {
		termui.StopLoop()
	})
	termui.Handle("/sys/kbd/C-c", func(termui.Event) {
		termui.StopLoop()
	})
	termui.Handle("/sys/wnd/resize", func(termui.Event) {
		tbl.Width = termui.TermWidth()
		tbl.Height = termui.TermHeight()
	})
	termui.Loop()
}

func updateDisplay(tbl *termui.Table, svc *sapsrv.Service) {
	set := treeset.NewWith(func(a, b interface{}) int {
		ra, rb := a.(row), b.(row)
		return godsutils.StringComparator(
			ra.name+strconv.Itoa(int(ra.hash)),
			rb.name+strconv.Itoa(int(rb.hash)),
		)
	})

	now := host.Now()
	for _, s := range svc.Sessions(sapsrv.NotExpired(now, int32(sap.MinTimeoutSec))) {
		doc, err := sdp.Unmarshal(s.Payload, sdp.Options{})
		name := "?"
		group := s.Origin.Format()
		if err == nil {
			if doc.SessionName != "" {
				name = doc.SessionName
			}
		}
		set.Add(row{name: name, hash: s.Hash, group: group})
	}

	displayed := [][]string{{"Session", "Hash", "Originator"}}
	it := set.Iterator()
	for it.Next() {
		r := it.Value().(row)
		displayed = append(displayed, []string{r.name, strconv.FormatUint(uint64(r.hash), 16), r.group})
	}
	tbl.SetRows(displayed)
	termui.Render(tbl)
}
