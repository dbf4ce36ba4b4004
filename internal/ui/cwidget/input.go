package cwidget

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Input is a labelled entry that parses its text into T. The callback only
// fires for values the validator accepts; rejected text shows an error line
// and leaves the current value in place.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText string
	Unit      string

	Value T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

// NewIntInput accepts whole numbers not below min. Empty text keeps value.
func NewIntInput(label, unit string, value, min int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText: label,
		Unit:      unit,
		Value:     value,
		OnChanged: onChanged,
		Format:    strconv.Itoa,
	}

	input.Validator = func(s string) (int, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return input.Value, nil
		}

		res, err := strconv.Atoi(s)
		if err != nil {
			return input.Value, fmt.Errorf("%q is not a whole number", s)
		}
		if res < min {
			return input.Value, fmt.Errorf("must be at least %d", min)
		}
		return res, nil
	}

	input.build()
	return input
}

func (item *Input[T]) build() {
	item.labelWidget = widget.NewLabel(item.caption())
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Format(item.Value))

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = item.submit

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) submit(s string) {
	res, err := item.Validator(s)
	item.SetError(err)
	if err != nil {
		return
	}

	item.Value = res
	item.labelWidget.SetText(item.caption())
	if item.OnChanged != nil {
		item.OnChanged(res)
	}
}

func (item *Input[T]) caption() string {
	if item.Unit == "" {
		return fmt.Sprintf("%s: %s", item.LabelText, item.Format(item.Value))
	}
	return fmt.Sprintf("%s: %s %s", item.LabelText, item.Format(item.Value), item.Unit)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
