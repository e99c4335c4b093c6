package template

import "notifyhub/internal/domain/notification"

// builtin is the catalog every engine starts with.
var builtin = []notification.Template{
	{
		ID:      notification.TemplateProjectCommitWarning,
		Version: 1,
		Title:   "项目提交预警 - {{.warning_level}}级别",
		TitleEN: "Project Commit Warning - {{.warning_level_en}} Level",
		Content: "项目「{{.project_title}}」已连续{{.days_without_commits}}天无代码提交。\n\n" +
			"📊 项目统计：\n" +
			"• 历史提交总数：{{.total_commit_count}}次\n" +
			"• 连续无提交天数：{{.days_without_commits}}天\n" +
			"• 预警级别：{{.warning_level}}\n\n" +
			"{{.severity_message}}" +
			"请开发者及时推进项目进度，确保按时交付。",
		ContentEN: "Project '{{.project_title}}' has had no code commits for {{.days_without_commits}} consecutive days.\n\n" +
			"📊 Project Statistics:\n" +
			"• Total historical commits: {{.total_commit_count}}\n" +
			"• Consecutive days without commits: {{.days_without_commits}}\n" +
			"• Warning level: {{.warning_level_en}}\n\n" +
			"{{.severity_message_en}}" +
			"Please ensure timely project progress and on-time delivery.",
		Type:        notification.TypeProject,
		Importance:  notification.ImportanceHigh,
		ExpiryHours: 168,
	},
	{
		ID:          notification.TemplateOrderApplication,
		Version:     1,
		Title:       "有新的开发者报名您的订单",
		TitleEN:     "New Developer Applied for Your Order",
		Content:     "开发者 {{.developer_name}} 报名了您的订单「{{.order_title}}」，请及时查看并选择合适的开发者。",
		ContentEN:   "Developer {{.developer_name}} has applied for your order '{{.order_title}}'. Please review and select the appropriate developer.",
		Type:        notification.TypeOrder,
		Importance:  notification.ImportanceNormal,
		TargetRole:  notification.RoleClient,
		ExpiryHours: 168,
	},
	{
		ID:          notification.TemplateMilestoneCompletion,
		Version:     1,
		Title:       "项目里程碑已完成",
		TitleEN:     "Project Milestone Completed",
		Content:     "开发者 {{.developer_name}} 完成了里程碑「{{.milestone_title}}」，请及时验收。",
		ContentEN:   "Developer {{.developer_name}} has completed the milestone '{{.milestone_title}}'. Please review and accept.",
		Type:        notification.TypeProject,
		Importance:  notification.ImportanceHigh,
		TargetRole:  notification.RoleClient,
		ExpiryHours: 72,
	},
	{
		ID:          notification.TemplatePaymentSuccess,
		Version:     1,
		Title:       "支付成功",
		TitleEN:     "Payment Successful",
		Content:     "您的支付已成功完成，金额：${{money .amount}}。",
		ContentEN:   "Your payment of ${{money .amount}} has been completed successfully.",
		Type:        notification.TypePayment,
		Importance:  notification.ImportanceHigh,
		ExpiryHours: 72,
	},
	{
		ID:          notification.TemplateContractSigned,
		Version:     1,
		Title:       "开发者已签署合同",
		TitleEN:     "Developer Has Signed Contract",
		Content:     "开发者 {{.developer_name}} 已接受并签署了项目「{{.order_title}}」的合同，合同正式生效。项目即将开始，您可以在项目管理页面查看进度。",
		ContentEN:   "Developer {{.developer_name}} has accepted and signed the contract for project '{{.order_title}}'. The contract is now effective and the project will begin soon. You can track progress in the project management page.",
		Type:        notification.TypeOrder,
		Importance:  notification.ImportanceHigh,
		TargetRole:  notification.RoleClient,
		ExpiryHours: 168,
	},
	{
		ID:          notification.TemplateMilestoneEscrow,
		Version:     1,
		Title:       "里程碑托管资金已创建",
		TitleEN:     "Milestone Escrow Created",
		Content:     "项目「{{.order_title}}」的里程碑「{{.milestone_title}}」托管资金 ${{money .escrow_amount}} 已创建，您可以放心开始工作，完成后申请验收即可释放资金。",
		ContentEN:   "Escrow funds of ${{money .escrow_amount}} have been created for milestone '{{.milestone_title}}' in project '{{.order_title}}'. You can start working with confidence and request acceptance after completion to release the funds.",
		Type:        notification.TypePayment,
		Importance:  notification.ImportanceNormal,
		TargetRole:  notification.RoleFreelancer,
		ExpiryHours: 168,
	},
	{
		ID:          notification.TemplateMilestoneAcceptanceRequest,
		Version:     1,
		Title:       "里程碑验收申请",
		TitleEN:     "Milestone Acceptance Request",
		Content:     "开发者 {{.developer_name}} 已完成项目「{{.order_title}}」的里程碑「{{.milestone_title}}」，请及时确认验收。验收后将自动释放托管资金。",
		ContentEN:   "Developer {{.developer_name}} has completed milestone '{{.milestone_title}}' in project '{{.order_title}}'. Please confirm acceptance promptly. Escrow funds will be automatically released upon acceptance.",
		Type:        notification.TypeProject,
		Importance:  notification.ImportanceHigh,
		TargetRole:  notification.RoleClient,
		ExpiryHours: 72,
	},
	{
		ID:          notification.TemplateMilestoneAcceptanceConfirmed,
		Version:     1,
		Title:       "里程碑验收成功",
		TitleEN:     "Milestone Accepted",
		Content:     "恭喜！项目「{{.order_title}}」的里程碑「{{.milestone_title}}」验收通过，您获得收入 ${{money .developer_income}}（已扣除20%平台佣金）已到账。",
		ContentEN:   "Congratulations! Milestone '{{.milestone_title}}' in project '{{.order_title}}' has been accepted. You earned ${{money .developer_income}} (after 20% platform commission) has been credited to your account.",
		Type:        notification.TypePayment,
		Importance:  notification.ImportanceHigh,
		TargetRole:  notification.RoleFreelancer,
		ExpiryHours: 168,
	},
	{
		ID:          notification.TemplateOfferHire,
		Version:     1,
		Title:       "收到项目合作邀请",
		TitleEN:     "Project Collaboration Invitation Received",
		Content:     "客户 {{.client_name}} 向您发送了项目合作邀请！\n\n📋 项目：{{.order_title}}\n💰 预算：${{.budget}}\n\n请及时查看合同详情并确认签署，签署后即可开始合作。",
		ContentEN:   "Client {{.client_name}} has sent you a project collaboration invitation!\n\n📋 Project: {{.order_title}}\n💰 Budget: ${{.budget}}\n\nPlease review the contract details and confirm signing to start collaboration.",
		Type:        notification.TypeOrder,
		Importance:  notification.ImportanceHigh,
		TargetRole:  notification.RoleFreelancer,
		ExpiryHours: 168,
	},
}
