package chat

import (
	"fmt"
	"strings"
)

// Command tokens understood outside and inside the booking flow. The channel
// audience is zh-TW, matching the clinic's LINE official account.
const (
	cmdBook     = "預約"
	cmdQuery    = "查詢"
	cmdProgress = "進度"
	cmdCancel   = "取消"
	cmdConfirm  = "確認"
)

const (
	msgWelcome = "歡迎加入診所預約系統！\n\n請選擇功能：\n1. 預約看診\n2. 查詢預約\n3. 看診進度"
	msgMenu    = "您好！請選擇功能：\n\n1. 預約 - 輸入「預約」\n2. 查詢 - 輸入「查詢」\n3. 進度 - 輸入「進度」"

	msgNoDoctors      = "目前沒有可預約的醫師，請稍後再試"
	msgInvalidDoctor  = "請輸入有效的醫師編號"
	msgInvalidDate    = "日期格式錯誤，請輸入 YYYY-MM-DD"
	msgNoSlots        = "該日期沒有可預約的時段，請選擇其他日期"
	msgInvalidSlot    = "請輸入有效的時段編號"
	msgAskName        = "請輸入您的姓名"
	msgAskPhone       = "請輸入您的聯絡電話"
	msgConfirmAgain   = "請輸入「確認」完成預約，或「取消」返回"
	msgSlotFull       = "預約失敗：該時段已額滿，請重新預約其他時段"
	msgDuplicate      = "預約失敗：您已預約過此時段"
	msgSlotContended  = "預約失敗：該時段預約人數眾多，請稍後再試"
	msgBookingFailed  = "預約失敗，請稍後再試"
	msgNoAppointments = "您目前沒有預約紀錄"
	msgNoPending      = "您今天沒有待看診的預約"
)

func doctorMenuMessage(doctors []DoctorChoice) string {
	var b strings.Builder
	b.WriteString("請選擇醫師（輸入編號）：\n")
	for i, d := range doctors {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, d.Name, d.Specialty)
	}
	b.WriteString("\n輸入「取消」可返回")
	return b.String()
}

func askDateMessage(doctorName string) string {
	return fmt.Sprintf("您選擇了 %s\n\n請輸入預約日期（格式：YYYY-MM-DD）", doctorName)
}

func slotMenuMessage(slots []SlotChoice) string {
	var b strings.Builder
	b.WriteString("可預約時段：\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s - %s (%d/%d)\n", i+1, s.StartTime, s.EndTime, s.BookedCount, s.MaxCapacity)
	}
	b.WriteString("\n請輸入時段編號")
	return b.String()
}

func confirmMessage(d Draft) string {
	return fmt.Sprintf(
		"請確認預約資訊：\n\n醫師：%s\n日期：%s\n時段：%s\n姓名：%s\n電話：%s\n\n輸入「確認」完成預約，輸入「取消」返回",
		d.DoctorName, d.Date, draftSlotLabel(d), d.Name, d.Phone,
	)
}

func draftSlotLabel(d Draft) string {
	for _, s := range d.Slots {
		if s.ID == d.SlotID {
			return fmt.Sprintf("%s - %s", s.StartTime, s.EndTime)
		}
	}
	return ""
}

func bookedMessage(queueNumber int) string {
	return fmt.Sprintf("預約成功！\n\n您的預約號碼：%d\n請準時到診，謝謝！", queueNumber)
}

func progressMessage(doctorName string, queueNumber, currentNumber, waiting int) string {
	return fmt.Sprintf(
		"看診進度：\n\n醫師：%s\n目前叫號：%d\n您的號碼：%d\n預估還有 %d 位",
		doctorName, currentNumber, queueNumber, waiting,
	)
}
