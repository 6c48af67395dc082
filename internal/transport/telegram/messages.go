package telegram

import (
	"errors"

	"github.com/KotFed0t/fund_tracker_bot/internal/service"
)

const internalErrMsg = "出了点问题，请稍后再试..."

const helpMsg = `基金持仓助手

/funds - 我的持仓与收益
/add 代码 金额 [收益] [备注] - 添加基金
/batch - 批量添加基金
/refresh - 刷新持仓
/report - 导出 xlsx 报告
/login 用户名 密码 - 登录
/logout - 退出登录`

var userMessages = []struct {
	err error
	msg string
}{
	{service.ErrInvalidCode, "基金代码必须是 6 位数字"},
	{service.ErrInvalidAmount, "持有金额必须大于 0"},
	{service.ErrProfitBelowLoss, "亏损不能超过持有金额"},
	{service.ErrDuplicate, "该基金已在持仓中"},
	{service.ErrNotFound, "未找到该持仓"},
	{service.ErrUnavailable, "持仓服务暂时不可用，请稍后再试"},
	{service.ErrEmptyInput, "请输入基金代码列表"},
	{service.ErrNothingToAdd, "没有新基金可以添加"},
	{service.ErrBatchNotPreviewed, "请先发送 /batch"},
	{service.ErrBatchBusy, "批量操作进行中，请稍候"},
	{service.ErrBadCredentials, "用户名或密码错误"},
	{service.ErrLoginUnsupported, "当前不需要登录"},
}

func userMessage(err error) (string, bool) {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg, true
		}
	}
	return "", false
}
