package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/qs3c/subhub/internal/model"
)

// ErrorLogColumns 错误日志表格的全部列，顺序即展示顺序
var ErrorLogColumns = []string{
	"time",
	"username",
	"token_name",
	"model_name",
	"channel",
	"group",
	"ip",
	"error_code",
	"status_code",
	"error_type",
	"content",
}

const (
	keyColumns          = "columns"
	keySubscriptionHTML = "page.subscription_html"
)

// ColumnPrefs 错误日志列显示偏好，未设置的列默认显示
type ColumnPrefs struct {
	hidden map[string]bool
}

func (c *ColumnPrefs) Visible(column string) bool {
	return !c.hidden[column]
}

func (c *ColumnPrefs) SetVisible(column string, visible bool) {
	if visible {
		delete(c.hidden, column)
		return
	}
	if c.hidden == nil {
		c.hidden = make(map[string]bool)
	}
	c.hidden[column] = true
}

// Reset 全部恢复显示
func (c *ColumnPrefs) Reset() {
	c.hidden = make(map[string]bool)
}

// VisibleColumns 按默认顺序返回需要显示的列
func (c *ColumnPrefs) VisibleColumns() []string {
	cols := make([]string, 0, len(ErrorLogColumns))
	for _, col := range ErrorLogColumns {
		if c.Visible(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// OptionGetter 读取服务端设置
type OptionGetter interface {
	GetOption(ctx context.Context, key string) (string, error)
}

// PageSettings 订阅页面展示设置，SubscriptionHTML 为空时不展示
type PageSettings struct {
	SubscriptionHTML string
}

func (p *PageSettings) Enabled() bool {
	return strings.TrimSpace(p.SubscriptionHTML) != ""
}

// Sync 从服务端拉取订阅页 HTML，内容原样保存
func (p *PageSettings) Sync(ctx context.Context, getter OptionGetter) error {
	html, err := getter.GetOption(ctx, model.OptionSubscriptionPageHTML)
	if err != nil {
		return err
	}
	p.SubscriptionHTML = html
	return nil
}

// Prefs 本地偏好文件，加载一次，修改后需显式 Save
type Prefs struct {
	Columns *ColumnPrefs
	Page    *PageSettings

	path string
	v    *viper.Viper
}

// LoadPrefs 读取偏好文件，文件不存在时使用默认值
func LoadPrefs(path string) (*Prefs, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}

	p := &Prefs{
		Columns: &ColumnPrefs{hidden: make(map[string]bool)},
		Page:    &PageSettings{},
		path:    path,
		v:       v,
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("stat prefs: %w", err)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	for col, visible := range v.GetStringMap(keyColumns) {
		if shown, ok := visible.(bool); ok && !shown {
			p.Columns.hidden[col] = true
		}
	}
	p.Page.SubscriptionHTML = v.GetString(keySubscriptionHTML)
	return p, nil
}

// Save 写回偏好文件
func (p *Prefs) Save() error {
	cols := make(map[string]bool, len(p.Columns.hidden))
	for col := range p.Columns.hidden {
		cols[col] = false
	}
	p.v.Set(keyColumns, cols)
	p.v.Set(keySubscriptionHTML, p.Page.SubscriptionHTML)

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create prefs dir: %w", err)
		}
	}
	if err := p.v.WriteConfigAs(p.path); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
