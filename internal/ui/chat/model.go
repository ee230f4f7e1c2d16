// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/docchat-tui/internal/app"
	"github.com/jeranaias/docchat-tui/internal/conversation"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/notify"
	"github.com/jeranaias/docchat-tui/internal/ui/components"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS
// =============================================================================

// Focus identifies which pane receives keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusSidebar
	FocusUpload
)

// String returns the focus name.
func (f Focus) String() string {
	switch f {
	case FocusInput:
		return "input"
	case FocusSidebar:
		return "sidebar"
	case FocusUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Options configures a Model. Workspace must have been created with Bridge
// as its navigator, Toasts as its notifier and Bridge.UploadStatus as its
// upload status callback.
type Options struct {
	Context      context.Context
	Workspace    *app.Workspace
	Bridge       *Bridge
	Toasts       *notify.ToastManager
	Theme        *styles.Theme
	PreviewWidth int
	Logger       *zap.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx       context.Context
	ws        *app.Workspace
	bridge    *Bridge
	toasts    *notify.ToastManager
	theme     *styles.Theme
	markdown  *components.Markdown
	logger    *zap.Logger
	keys      KeyMap
	help      help.Model
	cancelMgr *cancelManager
	live      *StreamingBuffer

	sidebar  components.Sidebar
	viewport viewport.Model
	input    textarea.Model
	path     textinput.Model
	spinner  spinner.Model

	focus         Focus
	chatID        string
	ctrl          *conversation.Controller
	unsubscribe   func()
	messages      []model.Message
	attachments   []string
	state         conversation.State
	liveText      string
	uploadStatus  model.UploadStatus
	pendingDelete string
	ticking       bool
	showHelp      bool

	width  int
	height int
	ready  bool
}

// New creates the root model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	toasts := opts.Toasts
	if toasts == nil {
		toasts = notify.NewToastManager()
	}

	keys := DefaultKeyMap()

	input := textarea.New()
	input.Placeholder = "Ask a question about your documents..."
	input.ShowLineNumbers = false
	input.Prompt = ""
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(keys.InsertLine.Keys()...))
	input.Focus()

	path := textinput.New()
	path.Prompt = "PDF path: "
	path.Placeholder = "~/Documents/report.pdf"

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctx:       ctx,
		ws:        opts.Workspace,
		bridge:    opts.Bridge,
		toasts:    toasts,
		theme:     theme,
		markdown:  components.NewMarkdown(theme.GlamourStyle()),
		logger:    logging.OrNop(opts.Logger),
		keys:      keys,
		help:      help.New(),
		cancelMgr: newCancelManager(),
		live:      NewStreamingBuffer(),
		sidebar:   components.NewSidebar(opts.PreviewWidth),
		viewport:  viewport.New(0, 0),
		input:     input,
		path:      path,
		spinner:   sp,
		focus:     FocusInput,
	}
}

// Init loads the conversation list and starts the toast clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		loadChatsCmd(m.ctx, m.ws, false),
		components.ToastTickCmd(),
		m.spinner.Tick,
		textarea.Blink,
	)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ChatID returns the conversation shown, or "" on the landing view.
func (m Model) ChatID() string { return m.chatID }

// Focus returns the focused pane.
func (m Model) Focus() Focus { return m.focus }

// Messages returns the committed messages shown.
func (m Model) Messages() []model.Message { return m.messages }

// Attachments returns the attachments shown.
func (m Model) Attachments() []string { return m.attachments }

// LiveText returns the part of the streaming answer rendered so far.
func (m Model) LiveText() string { return m.liveText }

// State returns the open conversation's query state.
func (m Model) State() conversation.State { return m.state }

// UploadStatus returns the upload status of the open conversation.
func (m Model) UploadStatus() model.UploadStatus { return m.uploadStatus }

// PendingDelete returns the id awaiting delete confirmation.
func (m Model) PendingDelete() string { return m.pendingDelete }

// Sidebar returns the sidebar state.
func (m Model) Sidebar() components.Sidebar { return m.sidebar }

// Input returns the current input text.
func (m Model) Input() string { return m.input.Value() }
