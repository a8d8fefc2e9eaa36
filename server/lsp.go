package server

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/garnet/vm"
)

const lspName = "garnet-lsp"

// maxCompletionItems caps a single completion response.
const maxCompletionItems = 100

// LspServer answers editor queries from a booted VM's class graph.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server wrapping the given VM.
func NewLSP(v *vm.VM) *LspServer {
	s := &LspServer{
		worker:  NewVMWorker(v),
		docs:    make(map[string]string),
		version: v.Platform().Version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Garnet LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ":", "$"},
	}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.setDoc(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	// With Full sync, the last change event contains the full text
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		s.setDoc(params.TextDocument.URI, whole.Text)
		s.publishDiagnostics(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDoc(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) doc(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return complete(v, prefix), nil
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return hover(v, word), nil
	})
	if err != nil {
		return nil, nil
	}
	return result.(*protocol.Hover), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return definition(v, word), nil
	})
	if err != nil {
		return nil, nil
	}
	return result, nil
}

// --- VM-backed logic (called on worker goroutine) ---

func complete(v *vm.VM, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label, detail string, kind protocol.CompletionItemKind) {
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	switch {
	case strings.HasPrefix(prefix, "$"):
		for _, name := range v.Globals.Names() {
			if strings.HasPrefix(name, prefix) {
				add(name, "global", protocol.CompletionItemKindVariable)
			}
		}

	case strings.Contains(prefix, "::") || isConstName(prefix):
		var ns vm.Value
		tail := prefix
		if i := strings.LastIndex(prefix, "::"); i >= 0 {
			owner, err := v.ConstGetPath(prefix[:i])
			if err != nil {
				return nil
			}
			ns, tail = owner, prefix[i+2:]
		}
		owner, ok := ns.(*vm.Class)
		if ns != nil && !ok {
			return nil
		}
		if owner == nil {
			owner = v.ObjectClass
		}
		for _, name := range v.Constants.Names(owner) {
			if !strings.HasPrefix(name, tail) {
				continue
			}
			val, _ := v.Constants.At(owner, name)
			if c, ok := val.(*vm.Class); ok {
				detail := "class"
				if c.IsModule() {
					detail = "module"
				} else if sup := c.RealSuperclass(); sup != nil {
					detail = fmt.Sprintf("class (< %s)", sup.Path())
				}
				add(name, detail, protocol.CompletionItemKindClass)
			} else {
				add(name, "constant", protocol.CompletionItemKindConstant)
			}
		}

	default:
		seen := make(map[string]bool)
		for _, ci := range v.Describe().Classes {
			for _, m := range ci.Methods {
				if !seen[m] && strings.HasPrefix(m, prefix) {
					seen[m] = true
					add(m, "method", protocol.CompletionItemKindMethod)
				}
			}
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	}

	if len(items) > maxCompletionItems {
		items = items[:maxCompletionItems]
	}
	return items
}

func hover(v *vm.VM, word string) *protocol.Hover {
	var b strings.Builder

	if isConstName(strings.TrimPrefix(word, "::")) {
		val, err := v.ConstGetPath(word)
		if err != nil {
			return nil
		}
		c, ok := val.(*vm.Class)
		if !ok {
			fmt.Fprintf(&b, "**%s** = `%s`", word, v.Inspect(val))
			return markdown(b.String())
		}
		info, ok := v.DescribeClass(c.Path())
		if !ok {
			return nil
		}

		fmt.Fprintf(&b, "**%s** (%s)", info.Name, info.Kind)
		if info.Superclass != "" {
			fmt.Fprintf(&b, " < %s", info.Superclass)
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%d instance methods", len(info.Methods))
		if len(info.Constants) > 0 {
			fmt.Fprintf(&b, ", constants: `%s`", strings.Join(info.Constants, "`, `"))
		}
		if len(info.Ancestors) > 1 {
			b.WriteString("\n\n**Ancestors:** ")
			b.WriteString(strings.Join(info.Ancestors, " → "))
		}
		return markdown(b.String())
	}

	implementors := implementorsOf(v, word)
	if len(implementors) == 0 {
		return nil
	}
	fmt.Fprintf(&b, "**#%s**\n\n", word)
	fmt.Fprintf(&b, "Implemented by %d classes:\n", len(implementors))
	for _, name := range implementors {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return markdown(b.String())
}

func definition(v *vm.VM, word string) []protocol.Location {
	if isConstName(strings.TrimPrefix(word, "::")) {
		val, err := v.ConstGetPath(word)
		if err != nil {
			return nil
		}
		c, ok := val.(*vm.Class)
		if !ok || c.Path() == "" {
			return nil
		}
		return []protocol.Location{classLocation(c.Path(), "")}
	}

	var locations []protocol.Location
	for _, name := range implementorsOf(v, word) {
		locations = append(locations, classLocation(name, word))
	}
	return locations
}

// implementorsOf lists the named classes that define method locally.
func implementorsOf(v *vm.VM, method string) []string {
	if _, ok := v.Symbols.Lookup(method); !ok {
		return nil
	}
	var names []string
	for _, ci := range v.Describe().Classes {
		i := sort.SearchStrings(ci.Methods, method)
		if i < len(ci.Methods) && ci.Methods[i] == method {
			names = append(names, ci.Name)
		}
	}
	return names
}

func classLocation(class, method string) protocol.Location {
	uri := "garnet://class/" + class
	if method != "" {
		uri += "/" + method
	}
	return protocol.Location{URI: protocol.DocumentUri(uri)}
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

// --- Diagnostics ---

var constPathRe = regexp.MustCompile(`(?:::)?[A-Z][A-Za-z0-9_]*(?:::[A-Z][A-Za-z0-9_]*)*`)

// unresolvedConstants reports every constant path in text that the VM cannot
// resolve. Paths preceded by an identifier character are skipped.
func unresolvedConstants(v *vm.VM, text string) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	severity := protocol.DiagnosticSeverityWarning
	source := lspName

	for lineNo, line := range strings.Split(text, "\n") {
		for _, loc := range constPathRe.FindAllStringIndex(line, -1) {
			if loc[0] > 0 && isIdentByte(line[loc[0]-1]) {
				continue
			}
			path := line[loc[0]:loc[1]]
			if _, err := v.ConstGetPath(path); err == nil {
				continue
			}
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: protocol.UInteger(lineNo), Character: protocol.UInteger(loc[0])},
					End:   protocol.Position{Line: protocol.UInteger(lineNo), Character: protocol.UInteger(loc[1])},
				},
				Severity: &severity,
				Source:   &source,
				Message:  "uninitialized constant " + strings.TrimPrefix(path, "::"),
			})
		}
	}
	return diagnostics
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(context.Background(), func(v *vm.VM) (any, error) {
		return unresolvedConstants(v, text), nil
	})
	if err != nil {
		log.Warningf("diagnostics for %s: %v", uri, err)
		return
	}

	diagnostics := result.([]protocol.Diagnostic)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for
// completion. Qualified constants and globals are kept whole.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	start := col
	for start > 0 {
		ch := line[start-1]
		if isIdentByte(ch) || ch == ':' || ch == '$' {
			start--
		} else {
			break
		}
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor, including a
// constant path and a trailing ? or !.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	start := col
	for start > 0 {
		ch := line[start-1]
		if isIdentByte(ch) || ch == ':' {
			start--
		} else {
			break
		}
	}

	end := col
	for end < len(line) {
		ch := line[end]
		if isIdentByte(ch) || ch == ':' {
			end++
		} else {
			break
		}
	}
	if end < len(line) && (line[end] == '?' || line[end] == '!') && end > start {
		end++
	}

	word := strings.TrimRight(line[start:end], ":")
	if strings.HasPrefix(word, ":") && !strings.HasPrefix(word, "::") {
		// A symbol literal.
		word = word[1:]
	}
	return word
}

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

func isIdentByte(ch byte) bool {
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_'
}

func isConstName(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func boolPtr(b bool) *bool {
	return &b
}
