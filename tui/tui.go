// Package tui is the interactive terminal panel. It edits the same database
// as the command line tool through app.Service and reloads whenever the file
// changes on disk.
package tui

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todo-cli/app"
	"todo-cli/model"
	"todo-cli/store"
)

type focusPane int

const (
	focusTags focusPane = iota
	focusTasks
)

func (f focusPane) String() string {
	if f == focusTasks {
		return "tasks"
	}
	return "tags"
}

type uiMode int

const (
	modeNormal uiMode = iota
	modeAddTask
	modeEditTask
	modeDue
	modeTag
	modeSearch
	modeConfirmDelete
	modeConfirmClear
)

// loadedMsg carries a fresh read of the database.
type loadedMsg struct {
	store model.Store
	err   error
}

// changedMsg reports that the file changed on disk.
type changedMsg struct{}

// resultMsg is the outcome of a mutation.
type resultMsg struct {
	status string
	err    error
}

// Options configure a Model.
type Options struct {
	// Changes delivers a value whenever the database file changes.
	Changes <-chan struct{}
	Filter  model.Filter
	Sort    app.SortOrder
	Now     func() time.Time
}

type Model struct {
	svc     *app.Service
	ctx     context.Context
	now     func() time.Time
	changes <-chan struct{}

	tasks   []model.Task
	loaded  bool
	loadErr error

	focus      focusPane
	mode       uiMode
	tagCursor  int
	taskCursor int
	input      string

	filter model.Filter
	sort   app.SortOrder
	query  string

	confirmID   int
	confirmName string

	showHelp bool

	status    string
	statusErr bool

	width  int
	height int

	palette []string
}

func NewModel(ctx context.Context, svc *app.Service, opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Filter == "" {
		opts.Filter = model.FilterAll
	}
	if opts.Sort == "" {
		opts.Sort = app.SortCreated
	}
	return &Model{
		svc:     svc,
		ctx:     ctx,
		now:     opts.Now,
		changes: opts.Changes,
		focus:   focusTasks,
		mode:    modeNormal,
		filter:  opts.Filter,
		sort:    opts.Sort,
		status:  "Ready",
		palette: []string{"12", "10", "11", "13", "14", "9"},
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForChange())
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		st, err := m.svc.Load(m.ctx)
		return loadedMsg{store: st, err: err}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// run executes a mutation off the UI loop and reports success with status.
func (m *Model) run(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{status: status, err: fn(ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case loadedMsg:
		m.loaded = true
		m.loadErr = msg.err
		if msg.err == nil {
			m.tasks = msg.store.Tasks
		} else {
			m.tasks = nil
			m.setStatus("Cannot read database: "+msg.err.Error(), true)
		}
		m.ensureSelection()
	case changedMsg:
		return m, tea.Batch(m.load(), m.waitForChange())
	case resultMsg:
		if msg.err != nil {
			m.setStatus("Error: "+msg.err.Error(), true)
			return m, nil
		}
		m.setStatus(msg.status, false)
		return m, m.load()
	case tea.KeyMsg:
		switch m.mode {
		case modeAddTask, modeEditTask, modeDue, modeTag, modeSearch:
			return m, m.updateInputMode(msg)
		case modeConfirmDelete, modeConfirmClear:
			return m, m.updateConfirmMode(msg)
		default:
			return m, m.updateNormalMode(msg)
		}
	}
	return m, nil
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "tab":
		if m.focus == focusTags {
			m.focus = focusTasks
		} else {
			m.focus = focusTags
		}
		m.setStatus(fmt.Sprintf("Focus: %s", m.focus), false)
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "a":
		m.mode = modeAddTask
		m.input = ""
	case "e":
		m.startInput(modeEditTask, func(t model.Task) string { return t.Text })
	case "D":
		m.startInput(modeDue, func(t model.Task) string { return t.Due })
	case "t":
		m.startInput(modeTag, func(model.Task) string { return "" })
	case "x":
		cmd = m.toggleTaskDone()
	case "d":
		m.startDeleteConfirm()
	case "C":
		m.startClearConfirm()
	case "1":
		cmd = m.setSelectedTaskPriority(model.PriorityUnset)
	case "2":
		cmd = m.setSelectedTaskPriority(model.PriorityLow)
	case "3":
		cmd = m.setSelectedTaskPriority(model.PriorityMed)
	case "4":
		cmd = m.setSelectedTaskPriority(model.PriorityHigh)
	case "f":
		m.cycleFilter()
	case "s":
		m.cycleSort()
	case "r":
		m.setStatus("Reloading", false)
		cmd = m.load()
	case "/":
		m.mode = modeSearch
		m.input = m.query
		m.setStatus("Incremental search: type to filter", false)
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.setStatus("Shortcuts open (? or Esc closes)", false)
		} else {
			m.setStatus("Shortcuts hidden", false)
		}
	case "esc":
		if m.showHelp {
			m.showHelp = false
			m.setStatus("Shortcuts hidden", false)
			break
		}
		if m.query != "" {
			m.query = ""
			m.taskCursor = 0
			m.setStatus("Search cleared", false)
		}
	}

	m.ensureSelection()
	return cmd
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.mode == modeSearch {
			m.query = ""
			m.taskCursor = 0
			m.setStatus("Search cleared", false)
		} else {
			m.setStatus("Cancelled", false)
		}
		m.mode = modeNormal
		m.input = ""
		m.ensureSelection()
		return nil
	case "enter":
		return m.applyInput()
	}

	switch msg.Type {
	case tea.KeyBackspace, tea.KeyCtrlH:
		m.input = trimLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}

	if m.mode == modeSearch {
		m.query = strings.TrimSpace(m.input)
		m.taskCursor = 0
		m.ensureSelection()
	}
	return nil
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) tea.Cmd {
	switch strings.ToLower(msg.String()) {
	case "y":
		mode := m.mode
		m.mode = modeNormal
		if mode == modeConfirmClear {
			return m.confirmClear()
		}
		return m.confirmDelete()
	case "n", "esc", "enter":
		m.mode = modeNormal
		m.confirmID = 0
		m.confirmName = ""
		m.setStatus("Cancelled", false)
	}
	return nil
}

func (m *Model) applyInput() tea.Cmd {
	text := strings.TrimSpace(m.input)
	mode := m.mode
	m.mode = modeNormal
	m.input = ""

	if mode == modeSearch {
		if text == "" {
			m.setStatus("Search cleared", false)
		} else {
			m.setStatus("Search applied", false)
		}
		return nil
	}
	if mode == modeAddTask {
		if text == "" {
			m.setStatus("Task text cannot be empty", true)
			return nil
		}
		return m.run("Task added", func(ctx context.Context) error {
			_, err := m.svc.AddTask(ctx, app.NewTask{Text: text})
			return err
		})
	}

	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return nil
	}
	switch mode {
	case modeEditTask:
		if text == "" {
			m.setStatus("Task text cannot be empty", true)
			return nil
		}
		return m.run(fmt.Sprintf("Updated #%d", task.ID), func(ctx context.Context) error {
			_, err := m.svc.EditText(ctx, task.ID, text)
			return err
		})
	case modeDue:
		due, err := app.ParseDue(text, m.now())
		if err != nil {
			m.setStatus(err.Error(), true)
			return nil
		}
		status := fmt.Sprintf("#%d due %s", task.ID, due)
		if due == "" {
			status = fmt.Sprintf("#%d has no due date", task.ID)
		}
		return m.run(status, func(ctx context.Context) error {
			_, err := m.svc.SetDue(ctx, task.ID, due)
			return err
		})
	case modeTag:
		tag := strings.TrimPrefix(text, "#")
		if tag == "" {
			m.setStatus("Tag cannot be empty", true)
			return nil
		}
		if task.HasTag(tag) {
			return m.run(fmt.Sprintf("Removed #%s from #%d", tag, task.ID), func(ctx context.Context) error {
				_, err := m.svc.RemoveTag(ctx, task.ID, tag)
				return err
			})
		}
		return m.run(fmt.Sprintf("Tagged #%d with #%s", task.ID, tag), func(ctx context.Context) error {
			_, err := m.svc.AddTag(ctx, task.ID, tag)
			return err
		})
	}
	return nil
}

func (m *Model) startInput(mode uiMode, initial func(model.Task) string) {
	if m.focus != focusTasks {
		m.setStatus("Switch focus to tasks (Tab)", false)
		return
	}
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.mode = mode
	m.input = initial(task)
}

func (m *Model) moveCursor(delta int) {
	if m.focus == focusTags {
		tags := m.tagEntries()
		old := m.tagCursor
		m.tagCursor = clamp(m.tagCursor+delta, 0, len(tags)-1)
		if m.tagCursor != old {
			m.taskCursor = 0
		}
		return
	}

	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return
	}
	m.taskCursor = clamp(m.taskCursor+delta, 0, len(tasks)-1)
}

func (m *Model) toggleTaskDone() tea.Cmd {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return nil
	}
	status := fmt.Sprintf("Done #%d", task.ID)
	if task.Done {
		status = fmt.Sprintf("Reopened #%d", task.ID)
	}
	return m.run(status, func(ctx context.Context) error {
		_, err := m.svc.SetDone(ctx, []int{task.ID}, !task.Done)
		return err
	})
}

func (m *Model) setSelectedTaskPriority(p model.Priority) tea.Cmd {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return nil
	}
	return m.run(fmt.Sprintf("Priority: %s", priorityLabel(p)), func(ctx context.Context) error {
		_, err := m.svc.SetPriority(ctx, task.ID, p)
		return err
	})
}

func (m *Model) cycleFilter() {
	switch m.filter {
	case model.FilterAll:
		m.filter = model.FilterPending
	case model.FilterPending:
		m.filter = model.FilterDone
	default:
		m.filter = model.FilterAll
	}
	m.taskCursor = 0
	m.setStatus("Filter: "+filterLabel(m.filter), false)
}

func (m *Model) cycleSort() {
	switch m.sort {
	case app.SortCreated:
		m.sort = app.SortDue
	case app.SortDue:
		m.sort = app.SortPriority
	default:
		m.sort = app.SortCreated
	}
	m.setStatus("Sort: "+string(m.sort), false)
}

func (m *Model) startDeleteConfirm() {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.mode = modeConfirmDelete
	m.confirmID = task.ID
	m.confirmName = task.Text
}

func (m *Model) confirmDelete() tea.Cmd {
	id := m.confirmID
	m.confirmID = 0
	m.confirmName = ""
	return func() tea.Msg {
		res, err := m.svc.ArchiveAndRemove(m.ctx, []int{id})
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: removedStatus(res, fmt.Sprintf("Removed #%d", id))}
	}
}

func (m *Model) startClearConfirm() {
	done := 0
	for _, t := range m.tasks {
		if t.Done {
			done++
		}
	}
	if done == 0 {
		m.setStatus("No done tasks to clear", false)
		return
	}
	m.mode = modeConfirmClear
	m.confirmName = fmt.Sprintf("%d done", done)
}

func (m *Model) confirmClear() tea.Cmd {
	m.confirmName = ""
	return func() tea.Msg {
		res, err := m.svc.ClearDone(m.ctx)
		if err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{status: removedStatus(res, fmt.Sprintf("Cleared %d done", len(res.Removed)))}
	}
}

func removedStatus(res app.RemoveResult, status string) string {
	if res.ArchiveErr != nil {
		return status + " (not archived: " + res.ArchiveErr.Error() + ")"
	}
	return status + " • archived"
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) ensureSelection() {
	tags := m.tagEntries()
	m.tagCursor = clamp(m.tagCursor, 0, len(tags)-1)

	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		m.taskCursor = 0
		return
	}
	m.taskCursor = clamp(m.taskCursor, 0, len(tasks)-1)
}

// tagEntries lists the tag pane rows. The first row, "", means every tag.
func (m *Model) tagEntries() []string {
	seen := map[string]bool{}
	var tags []string
	for _, t := range m.tasks {
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return append([]string{""}, tags...)
}

func (m *Model) activeTag() string {
	tags := m.tagEntries()
	if m.tagCursor < 0 || m.tagCursor >= len(tags) {
		return ""
	}
	return tags[m.tagCursor]
}

func (m *Model) visibleTasks() []model.Task {
	return app.Apply(m.tasks, app.Query{
		Status: m.filter,
		Tag:    m.activeTag(),
		Search: m.query,
		Sort:   m.sort,
	})
}

func (m *Model) selectedTask() (model.Task, bool) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return model.Task{}, false
	}
	if m.taskCursor < 0 || m.taskCursor >= len(tasks) {
		m.taskCursor = 0
	}
	return tasks[m.taskCursor], true
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	title := lipgloss.NewStyle().Bold(true).Render("todo")
	res := m.svc.ResolvePath()
	summary := fmt.Sprintf("%s (%s) • filter: %s • sort: %s", res.Path, res.Source, filterLabel(m.filter), m.sort)
	if m.query != "" {
		summary += " • search: \"" + m.query + "\""
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+truncateRunes(summary, m.viewportWidth()-6)),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	outerPaneW := viewW - 2
	if outerPaneW < 20 {
		outerPaneW = viewW
	}

	panelH := m.height - 6
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2
	if innerPaneH < 6 {
		innerPaneH = 6
	}

	leftW, rightW := m.paneWidths(outerPaneW, paneGap)
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTagsPanel(leftW, innerPaneH),
		lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("│"),
		m.renderTasksPanel(rightW, innerPaneH),
	)

	frameColor := lipgloss.Color("240")
	if m.mode == modeNormal {
		frameColor = lipgloss.Color("39")
	}
	if m.loadErr != nil {
		frameColor = lipgloss.Color("9")
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(outerPaneW).
		Height(panelH).
		Render(split)

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	rightHint := "? shortcuts"
	if m.showHelp {
		rightHint = "Esc/? close"
	}
	footerLine := m.renderFooter(m.status, statusStyle, rightHint)

	promptLine := ""
	switch m.mode {
	case modeAddTask:
		promptLine = "New task: " + m.input + "▌"
	case modeEditTask:
		promptLine = "Edit task: " + m.input + "▌"
	case modeDue:
		promptLine = "Due (YYYY-MM-DD, +3d, tomorrow, none): " + m.input + "▌"
	case modeTag:
		promptLine = "Toggle tag: " + m.input + "▌"
	case modeSearch:
		promptLine = "Search (/): " + m.input + "▌  (Enter keeps, Esc clears)"
	case modeConfirmDelete:
		promptLine = fmt.Sprintf("Remove \"%s\"? It will be archived. [y/N]", m.confirmName)
	case modeConfirmClear:
		promptLine = fmt.Sprintf("Archive and remove %s tasks? [y/N]", m.confirmName)
	}
	if promptLine != "" {
		promptLine = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Width(viewW).Render(promptLine)
	}

	if m.showHelp {
		popupW := viewW - 8
		if popupW > 80 {
			popupW = 80
		}
		if popupW < 40 {
			popupW = viewW - 2
		}
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(popupW))
	}

	parts := []string{header, panes, footerLine}
	if promptLine != "" && !m.showHelp {
		parts = append(parts, promptLine)
	}
	return strings.Join(parts, "\n")
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// One column is left free so terminals don't wrap the right border.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

func (m *Model) paneWidths(total, gap int) (int, int) {
	if total <= 0 {
		return 16, 30
	}
	if gap < 0 {
		gap = 0
	}

	minLeft := 14
	minRight := 30
	if total < minLeft+minRight+gap {
		left := total / 3
		if left < 10 {
			left = 10
		}
		right := total - left - gap
		if right < 12 {
			right = 12
			left = total - right - gap
			if left < 8 {
				left = 8
			}
		}
		return left, right
	}

	left := total / 5
	if left < 16 {
		left = 16
	}
	if left > 28 {
		left = 28
	}

	right := total - left - gap
	if right < minRight {
		right = minRight
		left = total - right - gap
	}
	if left < minLeft {
		left = minLeft
		right = total - left - gap
	}
	return left, right
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderHelpOverlay(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Shortcuts")
	section := lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	line := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	rows := []string{
		title,
		"",
		section.Render("Global"),
		line.Render("  Tab switch pane • j/k move • r reload • q quit"),
		line.Render("  / search • f filter • s sort • ? shortcuts"),
		"",
		section.Render("Tasks"),
		line.Render("  a add • e edit • x done/reopen • 1..4 priority"),
		line.Render("  D due date • t toggle tag • d remove • C clear done"),
		"",
		section.Render("Tags"),
		line.Render("  j/k pick the tag to show"),
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("244")).
		Padding(1, 2)
	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderTagsPanel(width, height int) string {
	tags := m.tagEntries()
	lines := make([]string, 0, len(tags)+1)
	lines = append(lines, panelTitleStyled("Tags", m.focus == focusTags))
	for i, tag := range tags {
		cursor := " "
		if i == m.tagCursor {
			cursor = "▸"
		}
		label := "all"
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Render("●")
		if tag != "" {
			label = "#" + tag
			dot = lipgloss.NewStyle().Foreground(m.tagColor(tag)).Render("●")
		}
		line := fmt.Sprintf("%s %s %s", cursor, dot, truncateRunes(label, width-4))
		if i == m.tagCursor {
			style := lipgloss.NewStyle().Bold(true)
			if m.focus == focusTags {
				style = style.Foreground(lipgloss.Color("229"))
			}
			line = style.Render(line)
		}
		lines = append(lines, line)
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTasksPanel(width, height int) string {
	tasks := m.visibleTasks()
	title := "Tasks"
	if tag := m.activeTag(); tag != "" {
		title = "Tasks #" + tag
	}

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	lines := make([]string, 0, len(tasks)+2)
	lines = append(lines, panelTitleStyled(title, m.focus == focusTasks))

	switch {
	case m.loadErr != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(truncateRunes(m.loadErr.Error(), width)))
		if errors.Is(m.loadErr, store.ErrCorrupt) {
			lines = append(lines, muted.Render("Run `todo doctor --repair --restore`, then r to reload."))
		}
	case !m.loaded:
		lines = append(lines, muted.Render("Loading..."))
	case len(m.tasks) == 0:
		lines = append(lines, muted.Render("No tasks yet. Press 'a' to add one."))
	case len(tasks) == 0:
		lines = append(lines, muted.Render("No task matches the current filter or search."))
	default:
		for i, t := range tasks {
			lines = append(lines, m.renderTask(t, i == m.taskCursor, width))
		}
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTask(t model.Task, selected bool, width int) string {
	cursor := " "
	if selected {
		cursor = "▸"
	}
	check := "[ ]"
	if t.Done {
		check = "[x]"
	}

	cursorStyle := lipgloss.NewStyle()
	textStyle := lipgloss.NewStyle()
	if t.Done {
		textStyle = textStyle.Faint(true)
	}
	if selected {
		cursorStyle = cursorStyle.Bold(true)
		textStyle = textStyle.Bold(true)
		if m.focus == focusTasks {
			sel := lipgloss.Color("229")
			cursorStyle = cursorStyle.Foreground(sel)
			textStyle = textStyle.Foreground(sel)
		}
	}

	meta := make([]string, 0, len(t.Tags)+1)
	if t.Due != "" {
		dueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		if !t.Done && t.Due < m.now().Format(model.DateLayout) {
			dueStyle = dueStyle.Foreground(lipgloss.Color("203"))
		}
		meta = append(meta, dueStyle.Render("due "+t.Due))
	}
	for _, tag := range t.Tags {
		meta = append(meta, lipgloss.NewStyle().Foreground(m.tagColor(tag)).Render("#"+tag))
	}

	prefix := fmt.Sprintf("%s %s #%d ", cursor, check, t.ID)
	text := truncateRunes(t.Text, width-utf8.RuneCountInString(prefix)-4)
	parts := []string{cursorStyle.Render(prefix), priorityIndicator(t.Priority), " ", textStyle.Render(text)}
	if len(meta) > 0 {
		parts = append(parts, "  ", strings.Join(meta, " "))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func (m *Model) tagColor(tag string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(tag))
	return lipgloss.Color(m.palette[int(h.Sum32()%uint32(len(m.palette)))])
}

func panelTitleStyled(title string, active bool) string {
	base := lipgloss.NewStyle().Bold(true)
	if !active {
		return base.Render(title)
	}
	text := base.Foreground(lipgloss.Color("229")).Render(title)
	marker := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("*")
	return lipgloss.JoinHorizontal(lipgloss.Left, text, " ", marker)
}

func priorityIndicator(p model.Priority) string {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("•")
	switch p {
	case model.PriorityLow:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("●")
	case model.PriorityMed:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render("●")
	case model.PriorityHigh:
		s = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("●")
	}
	return s
}

func priorityLabel(p model.Priority) string {
	if p == model.PriorityUnset {
		return "none"
	}
	return string(p)
}

func filterLabel(f model.Filter) string {
	switch f {
	case model.FilterPending:
		return "pending"
	case model.FilterDone:
		return "done"
	default:
		return "all"
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
