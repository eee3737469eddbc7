package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"
	"github.com/rs/zerolog"

	"apidash/internal/dashboard"
	"apidash/internal/orchestrator"
)

type screen int

const (
	screenEndpoints screen = iota
	screenBuilder
	screenResponse
)

type App struct {
	ctx  context.Context
	dash *dashboard.Dashboard
	log  zerolog.Logger

	g *gocui.Gui

	scr screen

	filter   string
	filtered []int
	selected int

	editing   bool
	editField string

	// sending is set from the moment a send is triggered until its
	// goroutine returns; it keeps ctrl+r disabled like the Loading button.
	sending bool

	notice string
}

func NewApp(ctx context.Context, dash *dashboard.Dashboard, log zerolog.Logger) *App {
	a := &App{ctx: ctx, dash: dash, log: log, scr: screenEndpoints}
	a.filtered = filterItems("", Project(dash.Snapshot()).Items)
	dash.Observe(a.onLifecycle)
	return a
}

// singleLineEditor is an editor that doesn't consume Enter (lets keybinding handle it)
type singleLineEditor struct{}

func (e singleLineEditor) Edit(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	switch {
	case key == gocui.KeyBackspace || key == gocui.KeyBackspace2:
		v.EditDelete(true)
	case key == gocui.KeyDelete:
		v.EditDelete(false)
	case key == gocui.KeyArrowLeft:
		v.MoveCursor(-1, 0, false)
	case key == gocui.KeyArrowRight:
		v.MoveCursor(1, 0, false)
	case key == gocui.KeyHome || key == gocui.KeyCtrlA:
		v.SetCursor(0, 0)
	case key == gocui.KeyEnd || key == gocui.KeyCtrlE:
		line := v.Buffer()
		v.SetCursor(len(line)-1, 0)
	case key == gocui.KeySpace:
		v.EditWrite(' ')
	case key == gocui.KeyEnter:
		// don't handle - let keybinding process it
	case ch != 0 && mod == 0:
		v.EditWrite(ch)
	}
}

func (a *App) Run() error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return err
	}
	defer g.Close()
	a.g = g

	g.BgColor = gocui.ColorBlack
	g.FgColor = gocui.ColorWhite
	g.Cursor = true
	g.InputEsc = true
	g.SetManagerFunc(a.layout)

	if err := a.bindKeys(); err != nil {
		return err
	}

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// onLifecycle runs on the sending goroutine; the redraw is queued onto the
// main loop.
func (a *App) onLifecycle(l orchestrator.Lifecycle) {
	a.log.Debug().Str("phase", l.Phase.String()).Str("endpoint", l.Endpoint).Str("request_id", l.RequestID).Msg("lifecycle")
	if a.g == nil {
		return
	}
	a.g.Update(func(*gocui.Gui) error { return nil })
}

func (a *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("header", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
		fmt.Fprintln(v, colorGreen+"apidash"+colorReset+"  -  API Testing Dashboard")
	}

	if v, err := g.SetView("footer", 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}

	view := Project(a.dash.Snapshot())
	a.renderFooter(view)

	switch a.scr {
	case screenEndpoints:
		return a.layoutEndpoints(maxX, maxY, view)
	case screenBuilder:
		return a.layoutBuilder(maxX, maxY, view)
	case screenResponse:
		return a.layoutResponse(maxX, maxY, view)
	default:
		return nil
	}
}

func (a *App) layoutEndpoints(maxX, maxY int, view View) error {
	a.clearMainViews([]string{"filter", "endpoints"})

	if v, err := a.g.SetView("filter", 0, 2, maxX-1, 4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Filter"
		v.Editable = false
	}
	if v, err := a.g.SetView("endpoints", 0, 4, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "API Selection"
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
		v.Autoscroll = false
	}
	a.renderFilter()
	a.renderEndpoints(view)
	if _, err := a.g.SetCurrentView("endpoints"); err != nil {
		return err
	}
	return nil
}

func (a *App) layoutBuilder(maxX, maxY int, view View) error {
	keep := []string{"selected", "form"}
	if a.editing {
		keep = append(keep, "edit")
	}
	a.clearMainViews(keep)

	if v, err := a.g.SetView("selected", 0, 2, maxX-1, 8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Selected endpoint"
		v.Wrap = true
	}
	if v, err := a.g.SetView("form", 0, 8, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Highlight = true
		v.SelFgColor = gocui.ColorBlack
		v.SelBgColor = gocui.ColorGreen
	}

	a.renderSelected(view)
	a.renderForm(view)

	if a.editing {
		a.g.SetViewOnTop("edit")
		a.g.SetCurrentView("edit")
		return nil
	}
	if _, err := a.g.SetCurrentView("form"); err != nil {
		return err
	}
	return nil
}

func (a *App) layoutResponse(maxX, maxY int, view View) error {
	a.clearMainViews([]string{"response"})

	if v, err := a.g.SetView("response", 0, 2, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Response"
		v.Wrap = false
		v.Autoscroll = false
	}
	a.renderResponse(view)
	if _, err := a.g.SetCurrentView("response"); err != nil {
		return err
	}
	return nil
}

func (a *App) clearMainViews(keep []string) {
	keepSet := map[string]bool{"header": true, "footer": true}
	for _, k := range keep {
		keepSet[k] = true
	}

	for _, n := range []string{"filter", "endpoints", "selected", "form", "edit", "response"} {
		if keepSet[n] {
			continue
		}
		if v, err := a.g.View(n); err == nil {
			v.Clear()
			a.g.DeleteView(n)
		}
	}
}

func (a *App) bindKeys() error {
	g := a.g
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, a.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyEsc, gocui.ModNone, a.back); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlR, gocui.ModNone, a.send); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlX, gocui.ModNone, a.resetDependencies); err != nil {
		return err
	}

	// endpoints list
	if err := g.SetKeybinding("endpoints", gocui.KeyArrowDown, gocui.ModNone, a.moveSel(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyArrowUp, gocui.ModNone, a.moveSel(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyEnter, gocui.ModNone, a.openBuilder); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyBackspace, gocui.ModNone, a.filterBackspace); err != nil {
		return err
	}
	if err := g.SetKeybinding("endpoints", gocui.KeyBackspace2, gocui.ModNone, a.filterBackspace); err != nil {
		return err
	}
	// digits quick-select, everything else printable feeds the filter
	for r := rune(32); r <= rune(126); r++ {
		handler := a.appendFilterRune(r)
		if r >= '1' && r <= '9' {
			handler = a.selectEndpointByNumber(int(r - '0'))
		}
		if err := g.SetKeybinding("endpoints", r, gocui.ModNone, handler); err != nil {
			return err
		}
	}

	// builder
	if err := g.SetKeybinding("form", gocui.KeyArrowDown, gocui.ModNone, a.moveRow(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", gocui.KeyArrowUp, gocui.ModNone, a.moveRow(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", gocui.KeyEnter, gocui.ModNone, a.beginEdit); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'd', gocui.ModNone, a.resetField); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'u', gocui.ModNone, a.cycleUser); err != nil {
		return err
	}
	if err := g.SetKeybinding("form", 'q', gocui.ModNone, a.quit); err != nil {
		return err
	}

	// edit modal
	if err := g.SetKeybinding("edit", gocui.KeyEnter, gocui.ModNone, a.confirmEdit); err != nil {
		return err
	}

	// response
	if err := g.SetKeybinding("response", gocui.KeyArrowDown, gocui.ModNone, a.scrollResponse(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", gocui.KeyArrowUp, gocui.ModNone, a.scrollResponse(-1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", 'r', gocui.ModNone, a.send); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", 'q', gocui.ModNone, a.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("response", gocui.KeyEnter, gocui.ModNone, a.responseToEndpoints); err != nil {
		return err
	}

	return nil
}

func (a *App) quit(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

func (a *App) back(*gocui.Gui, *gocui.View) error {
	if a.editing {
		return a.closeEdit()
	}
	switch a.scr {
	case screenResponse:
		a.scr = screenBuilder
	case screenBuilder:
		a.scr = screenEndpoints
	case screenEndpoints:
		// no previous screen
	}
	a.notice = ""
	return nil
}

// send triggers the selected endpoint. The request runs on its own goroutine
// so the Loading state is drawn while it is in flight.
func (a *App) send(*gocui.Gui, *gocui.View) error {
	if a.scr == screenEndpoints || a.editing {
		return nil
	}
	if a.sending || !Project(a.dash.Snapshot()).CanSend {
		a.notice = "request in progress"
		return nil
	}
	a.sending = true
	a.notice = ""
	a.scr = screenResponse

	go func() {
		_, err := a.dash.Send(a.ctx)
		if err != nil {
			a.log.Debug().Err(err).Msg("send finished with error")
		}
		a.g.Update(func(*gocui.Gui) error {
			a.sending = false
			if errors.Is(err, orchestrator.ErrInFlight) {
				a.notice = orchestrator.UserMessage(err)
			}
			return nil
		})
	}()
	return nil
}

func (a *App) resetDependencies(*gocui.Gui, *gocui.View) error {
	a.dash.ResetDependencies()
	a.notice = "dependencies cleared"
	return nil
}

func (a *App) appendFilterRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenEndpoints || a.editing {
			return nil
		}
		a.filter += string(r)
		a.recomputeFilter()
		return nil
	}
}

func (a *App) filterBackspace(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoints || a.editing {
		return nil
	}
	if len(a.filter) == 0 {
		return nil
	}
	a.filter = a.filter[:len(a.filter)-1]
	a.recomputeFilter()
	return nil
}

func (a *App) recomputeFilter() {
	a.filtered = filterItems(a.filter, Project(a.dash.Snapshot()).Items)
	if a.selected >= len(a.filtered) {
		a.selected = 0
	}
}

func (a *App) moveSel(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenEndpoints {
			return nil
		}
		if len(a.filtered) == 0 {
			return nil
		}
		a.selected += delta
		if a.selected < 0 {
			a.selected = 0
		}
		if a.selected >= len(a.filtered) {
			a.selected = len(a.filtered) - 1
		}
		if ev, err := a.g.View("endpoints"); err == nil {
			ev.SetCursor(0, a.selected)
		}
		return nil
	}
}

func (a *App) openBuilder(*gocui.Gui, *gocui.View) error {
	if a.scr != screenEndpoints {
		return nil
	}
	if len(a.filtered) == 0 {
		return nil
	}
	items := Project(a.dash.Snapshot()).Items
	if err := a.dash.Select(items[a.filtered[a.selected]].ID); err != nil {
		a.notice = err.Error()
		return nil
	}
	if v, err := a.g.View("form"); err == nil {
		v.SetCursor(0, 0)
		v.SetOrigin(0, 0)
	}
	a.scr = screenBuilder
	a.notice = ""
	return nil
}

func (a *App) selectEndpointByNumber(num int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenEndpoints {
			return nil
		}
		idx := num - 1
		if idx < 0 || idx >= len(a.filtered) {
			return nil
		}
		a.selected = idx
		return a.openBuilder(g, v)
	}
}

func (a *App) responseToEndpoints(*gocui.Gui, *gocui.View) error {
	if a.scr != screenResponse {
		return nil
	}
	a.scr = screenEndpoints
	a.notice = ""
	return nil
}

func (a *App) moveRow(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenBuilder || a.editing || v == nil {
			return nil
		}
		_, cy := v.Cursor()
		n := len(Project(a.dash.Snapshot()).Fields)
		newY := cy + delta
		if newY < 0 || newY >= n {
			return nil
		}
		v.SetCursor(0, newY)
		return nil
	}
}

// currentField returns the form field under the cursor.
func (a *App) currentField(view View) (FieldView, bool) {
	v, err := a.g.View("form")
	if err != nil {
		return FieldView{}, false
	}
	_, cy := v.Cursor()
	_, oy := v.Origin()
	i := oy + cy
	if i < 0 || i >= len(view.Fields) {
		return FieldView{}, false
	}
	return view.Fields[i], true
}

func (a *App) resetField(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing {
		return nil
	}
	f, ok := a.currentField(Project(a.dash.Snapshot()))
	if !ok {
		return nil
	}
	if err := a.dash.SetField(f.Name, ""); err != nil {
		a.notice = err.Error()
	}
	return nil
}

func (a *App) cycleUser(*gocui.Gui, *gocui.View) error {
	if a.scr != screenBuilder || a.editing {
		return nil
	}
	view := Project(a.dash.Snapshot())
	f, ok := a.currentField(view)
	if !ok || !f.Choices {
		return nil
	}
	next, ok := NextUser(f.Value, view.Users)
	if !ok {
		a.notice = "no users loaded; run Get Users List first"
		return nil
	}
	if err := a.dash.SetField(f.Name, next); err != nil {
		a.notice = err.Error()
	}
	return nil
}

func (a *App) beginEdit(g *gocui.Gui, v *gocui.View) error {
	if a.scr != screenBuilder || a.editing {
		return nil
	}
	f, ok := a.currentField(Project(a.dash.Snapshot()))
	if !ok {
		return nil
	}

	a.editing = true
	a.editField = f.Name

	// centered modal dialog
	maxX, maxY := g.Size()
	width := 60
	if width > maxX-4 {
		width = maxX - 4
	}
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	ev, err := g.SetView("edit", x0, y0, x0+width, y0+height)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		ev.Editable = true
		ev.Editor = singleLineEditor{}
		ev.BgColor = gocui.ColorBlack
		ev.FgColor = gocui.ColorWhite
	}
	ev.Title = fmt.Sprintf(" %s (enter=ok, esc=cancel) ", f.Label)
	ev.Clear()
	fmt.Fprint(ev, f.Value)
	ev.SetCursor(len(f.Value), 0)
	g.SetCurrentView("edit")
	return nil
}

func (a *App) closeEdit() error {
	if !a.editing {
		return nil
	}
	if v, err := a.g.View("edit"); err == nil {
		v.Clear()
		a.g.DeleteView("edit")
	}
	a.editing = false
	a.editField = ""
	return nil
}

func (a *App) confirmEdit(g *gocui.Gui, v *gocui.View) error {
	if !a.editing {
		return nil
	}
	val := strings.TrimSpace(viewText(v))
	if err := a.dash.SetField(a.editField, val); err != nil {
		a.notice = err.Error()
	}
	return a.closeEdit()
}

func (a *App) scrollResponse(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(g *gocui.Gui, v *gocui.View) error {
		if a.scr != screenResponse || v == nil {
			return nil
		}
		ox, oy := v.Origin()
		if delta > 0 {
			v.SetOrigin(ox, oy+1)
		} else if oy > 0 {
			v.SetOrigin(ox, oy-1)
		}
		return nil
	}
}

func (a *App) renderFooter(view View) {
	v, err := a.g.View("footer")
	if err != nil {
		return
	}
	v.Clear()
	msg := a.notice
	if msg == "" {
		switch a.scr {
		case screenEndpoints:
			msg = "type: filter   1-9: quick select   enter: select   ctrl+x: clear dependencies   ctrl+c: quit"
		case screenBuilder:
			msg = "enter: edit   d: clear field   u: next user   ctrl+r: send   esc: back   q: quit"
			if !view.CanSend || a.sending {
				msg = "loading...   esc: back   q: quit"
			}
		case screenResponse:
			msg = "up/down: scroll   r: resend   enter: endpoints   esc: back   q: quit"
		}
	}
	fmt.Fprint(v, msg)
}

func (a *App) renderFilter() {
	v, err := a.g.View("filter")
	if err != nil {
		return
	}
	v.Clear()
	fmt.Fprintf(v, "%s", a.filter)
}

func (a *App) renderEndpoints(view View) {
	v, err := a.g.View("endpoints")
	if err != nil {
		return
	}
	v.Clear()

	for i, idx := range a.filtered {
		fmt.Fprintln(v, itemLine(i, view.Items[idx]))
	}
	v.SetCursor(0, a.selected)
}

// itemLine renders one endpoint row. The first nine rows carry their
// quick-select digit and the selected endpoint is starred.
func itemLine(row int, it Item) string {
	prefix := "  "
	if row < 9 {
		prefix = fmt.Sprintf("%d ", row+1)
	}
	mark := " "
	if it.Active {
		mark = colorGreen + "*" + colorReset
	}
	return fmt.Sprintf("%s%s %s  %s %s- %s%s", prefix, mark, colorizeMethod(it.Method), it.ID, colorDim, it.Description, colorReset)
}

func (a *App) renderSelected(view View) {
	v, err := a.g.View("selected")
	if err != nil {
		return
	}
	v.Clear()
	if view.Selected == nil {
		fmt.Fprintln(v, "Select an API to see the response")
		return
	}
	fmt.Fprintf(v, "%s  %s\n", colorizeMethod(view.Selected.Method), view.Selected.ID)
	fmt.Fprintf(v, "%s%s%s\n", colorDim, view.Selected.Description, colorReset)
	if len(view.Deps) > 0 {
		fmt.Fprintf(v, "%sdependencies: %s%s\n", colorCyan, strings.Join(view.Deps, "  "), colorReset)
	}
	for _, msg := range view.Blocked {
		fmt.Fprintf(v, "%s%s%s\n", colorYellow, msg, colorReset)
	}
}

func (a *App) renderForm(view View) {
	v, err := a.g.View("form")
	if err != nil {
		return
	}
	v.Clear()
	if len(view.Fields) == 0 {
		fmt.Fprintln(v, "(no input required - press ctrl+r to send)")
		return
	}
	for _, f := range view.Fields {
		req := ""
		if f.Required {
			req = "*"
		}
		line := fmt.Sprintf("%s%s = %s", req, f.Name, f.Value)
		if f.Hint != "" {
			line += fmt.Sprintf("  %s(%s)%s", colorDim, f.Hint, colorReset)
		}
		if f.Problem != "" && f.Value != "" {
			line += fmt.Sprintf("  %s%s%s", colorYellow, f.Problem, colorReset)
		}
		fmt.Fprintln(v, line)
	}
}

func (a *App) renderResponse(view View) {
	v, err := a.g.View("response")
	if err != nil {
		return
	}
	v.Clear()

	if view.Selected != nil {
		fmt.Fprintf(v, "%s  %s%s%s\n\n", colorizeMethod(view.Selected.Method), colorDim, view.Selected.Description, colorReset)
	}
	switch view.Phase {
	case orchestrator.Idle:
		fmt.Fprintln(v, "Press ctrl+r to send the request")
	case orchestrator.Loading:
		fmt.Fprintln(v, view.Status)
	case orchestrator.Error:
		fmt.Fprintf(v, "%s! %s%s\n", colorRed, view.Status, colorReset)
	case orchestrator.Success:
		fmt.Fprintln(v, colorizeJSON(view.Payload, 0))
	}
}

func viewText(v *gocui.View) string {
	b := v.Buffer()
	// gocui includes a trailing newline
	return strings.TrimSuffix(b, "\n")
}
