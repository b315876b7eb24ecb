// Package commands turns user commands (drop, diy, clean, lookup, item,
// stack, customize) into replies and queued drop requests.
package commands

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Magma5/SysBot.AnimalCrossing/internal/catalog"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/drop"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/items"
	"github.com/Magma5/SysBot.AnimalCrossing/internal/protocol"
)

const (
	// lookupMaxLength truncates a lookup listing.
	lookupMaxLength = 1500

	TextDropped = "Items have been dropped by the bot. Please pick them up!"
	TextFailed  = "Failed to inject items. Please tell the bot owner to look at the logs!"
)

type Config struct {
	MaxDropCount    int
	AllowClean      bool
	DefaultLanguage string
}

// Reply is one message back to the user. Code is "" on success.
type Reply struct {
	Code      string
	Text      string
	RequestID string
}

type Service struct {
	cfg   Config
	cat   *catalog.Catalog
	queue *drop.Queue
	clean *drop.CleanFlag
	log   *log.Logger
}

func New(cfg Config, cat *catalog.Catalog, queue *drop.Queue, clean *drop.CleanFlag, logger *log.Logger) (*Service, error) {
	if cat == nil {
		return nil, errors.New("commands: catalog is required")
	}
	if queue == nil || clean == nil {
		return nil, errors.New("commands: queue and clean flag are required")
	}
	if cfg.MaxDropCount <= 0 {
		cfg.MaxDropCount = drop.DefaultMaxItems
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{cfg: cfg, cat: cat, queue: queue, clean: clean, log: logger}, nil
}

func failure(err error) Reply {
	return Reply{Code: protocol.CodeFor(err), Text: sentence(err.Error())}
}

func sentence(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	s = string(unicode.ToUpper(r)) + s[n:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

// DoneText is the completion notice for a resolved drop.
func DoneText(res drop.Result) string {
	if res.Success {
		return TextDropped
	}
	return TextFailed
}

// Handle dispatches one command. onFinish receives the drop result for
// commands that enqueue.
func (s *Service) Handle(who drop.Requester, cmd, args, lang string, page int, onFinish func(drop.Result)) []Reply {
	switch cmd {
	case protocol.CmdDrop:
		return s.Drop(who, args, onFinish)
	case protocol.CmdDIY:
		return s.DIY(who, args, onFinish)
	case protocol.CmdClean:
		return []Reply{s.Clean()}
	case protocol.CmdLookup:
		return []Reply{s.Lookup(args, lang, page)}
	case protocol.CmdItem:
		return []Reply{s.Item(args)}
	case protocol.CmdStack:
		return []Reply{s.Stack(args)}
	case protocol.CmdCustomize:
		return []Reply{s.Customize(args)}
	default:
		return []Reply{{Code: protocol.ErrProtoBadRequest, Text: fmt.Sprintf("Unknown command %q.", cmd)}}
	}
}

// Drop parses hex ids or names and queues them.
func (s *Service) Drop(who drop.Requester, args string, onFinish func(drop.Result)) []Reply {
	list, err := items.ParseUserInput(args, s.cfg.DefaultLanguage, s.cat)
	if err != nil {
		return []Reply{failure(err)}
	}
	return s.enqueue(who, list, onFinish)
}

// DIY parses hex recipe ids or item names and queues their recipe cards.
func (s *Service) DIY(who drop.Requester, args string, onFinish func(drop.Result)) []Reply {
	list, err := s.cat.Recipes.ParseUserInput(args, s.cfg.DefaultLanguage, s.cat)
	if err != nil {
		return []Reply{failure(err)}
	}
	return s.enqueue(who, list, onFinish)
}

func (s *Service) enqueue(who drop.Requester, list []items.Item, onFinish func(drop.Result)) []Reply {
	req, br, err := drop.Build(who, list, drop.BuildOptions{
		MaxItems: s.cfg.MaxDropCount,
		Stacks:   s.cat.Stacks,
	}, onFinish)
	if err != nil {
		return []Reply{failure(err)}
	}
	var out []Reply
	if br.Truncated {
		out = append(out, Reply{
			Code: protocol.ErrBatchTruncated,
			Text: fmt.Sprintf("Users are limited to %d items per command. Please use this bot responsibly.", s.cfg.MaxDropCount),
		})
	}
	if err := s.queue.Enqueue(req); err != nil {
		return append(out, failure(err))
	}
	plural := ""
	if req.Len() > 1 {
		plural = "s"
	}
	s.log.Printf("queued drop %s for %s (%d): %d items", req.ID(), who.Name, who.ID, req.Len())
	return append(out, Reply{
		Text:      fmt.Sprintf("Item drop request%s have been added to the queue and will be dropped momentarily.", plural),
		RequestID: req.ID(),
	})
}

func (s *Service) Clean() Reply {
	if !s.cfg.AllowClean {
		return Reply{Code: protocol.CodeFor(drop.ErrCleanDisabled), Text: "Clean functionality is currently disabled."}
	}
	s.clean.Request()
	return Reply{Text: "A clean request will be executed momentarily."}
}

// Lookup lists items whose name contains query. lang "" uses the default
// language; page 0 means the first page.
func (s *Service) Lookup(query, lang string, page int) Reply {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return Reply{Code: protocol.ErrInvalidInput, Text: fmt.Sprintf("Invalid page number %d.", page)}
	}
	if strings.TrimSpace(lang) == "" {
		lang = s.cfg.DefaultLanguage
	}
	names, ok := s.cat.Names(lang)
	if !ok {
		return Reply{Code: protocol.ErrInvalidInput, Text: fmt.Sprintf("Unknown language %q.", lang)}
	}
	if strings.TrimSpace(query) == "" {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Please enter a search term longer than 0 characters."}
	}
	p, err := items.Search(query, names, page)
	if err != nil {
		return failure(err)
	}
	if len(p.Matches) == 0 {
		return Reply{Text: "No matches found."}
	}
	return Reply{Text: FormatPage(p, s.cat.Recipes.Suffix)}
}

// FormatPage renders a lookup page, one "ID Name[, DIY: ...]" line per match.
func FormatPage(p items.Page, suffix func(uint16) string) string {
	var b strings.Builder
	for i, m := range p.Matches {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%04X %s", m.ID, m.Name)
		if suffix != nil {
			if sfx := suffix(m.ID); sfx != "" {
				b.WriteString(", ")
				b.WriteString(sfx)
			}
		}
	}
	if p.TotalPages > 1 {
		more := ""
		if p.Page != p.TotalPages {
			more = "..."
		}
		fmt.Fprintf(&b, "\n%s[Page %d/%d]", more, p.Page, p.TotalPages)
	}
	out := b.String()
	if len(out) > lookupMaxLength {
		n := lookupMaxLength
		for n > 0 && !utf8.RuneStart(out[n]) {
			n--
		}
		out = out[:n] + "...[truncated]"
	}
	return out
}

func (s *Service) name(id uint16) string {
	names, ok := s.cat.Names(s.cfg.DefaultLanguage)
	if !ok {
		return fmt.Sprintf("(Item #%04X)", id)
	}
	return names.Name(id)
}

func (s *Service) itemText(it items.Item) string {
	return fmt.Sprintf("%s: %s", s.name(it.ID), it.Hex())
}

func parseItemID(text string) (uint16, bool) {
	id := items.ParseID(text)
	return id, id != items.None
}

// Item describes id's customization options.
func (s *Service) Item(args string) Reply {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
	}
	id, ok := parseItemID(fields[0])
	if !ok {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
	}
	name := s.name(id)
	info := items.Describe(id, s.cat.Remakes)
	if info == "" {
		return Reply{Text: fmt.Sprintf("No customization data available for the requested item (%s).", name)}
	}
	return Reply{Text: fmt.Sprintf("%s:\n%s", name, info)}
}

// Stack answers "<id>" with the full-stack code and "<id> <count>" with a
// code for count items.
func (s *Service) Stack(args string) Reply {
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
	}
	id, ok := parseItemID(fields[0])
	if !ok {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
	}
	if len(fields) == 2 {
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
		}
		it, err := items.Stack(id, count)
		if err != nil {
			return Reply{Code: protocol.CodeFor(err), Text: "Invalid item requested."}
		}
		return Reply{Text: s.itemText(it)}
	}
	it, limit, err := items.StackMax(id, s.cat.Stacks)
	if err != nil {
		if errors.Is(err, items.ErrNotStackable) {
			return Reply{Code: protocol.CodeFor(err), Text: "Cannot stack."}
		}
		return failure(err)
	}
	msg := s.itemText(it)
	if limit > 1 {
		msg += fmt.Sprintf(" (Max: %d)", limit)
	}
	return Reply{Text: msg}
}

// Customize answers "<id> <sum>" or "<id> <body> <fabric>" with the
// customized item's code.
func (s *Service) Customize(args string) Reply {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Usage: customize <item id> <sum> | <item id> <value> <value>."}
	}
	id, ok := parseItemID(fields[0])
	if !ok {
		return Reply{Code: protocol.ErrInvalidInput, Text: "Invalid item requested."}
	}
	vals := make([]int, 0, 2)
	for _, f := range fields[1:] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return Reply{Code: protocol.ErrInvalidCustomization, Text: "Invalid customization data specified."}
		}
		vals = append(vals, v)
	}
	var (
		it  items.Item
		err error
	)
	if len(vals) == 2 {
		it, err = items.CustomizeParts(id, vals[0], vals[1], s.cat.Remakes)
	} else {
		it, err = items.Customize(id, vals[0], s.cat.Remakes)
	}
	if err != nil {
		return failure(err)
	}
	return Reply{Text: s.itemText(it)}
}
