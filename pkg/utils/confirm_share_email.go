package utils

import "fmt"

func SendConfirmShareEmail(to, firstName, groupName, subscriptionName, amountEach string) error {
	subject := fmt.Sprintf("✅ Approve your share for '%s'", groupName)

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<title>Share Confirmation</title>
	<style>
		body {
			font-family: 'Segoe UI', Roboto, Arial, sans-serif;
			background-color: #f6f8f7;
			margin: 0;
			padding: 0;
			color: #333;
		}
		.container {
			max-width: 480px;
			margin: 25px auto;
			background: #ffffff;
			border-radius: 12px;
			box-shadow: 0 4px 16px rgba(0, 0, 0, 0.08);
			overflow: hidden;
			border-top: 5px solid #2e8b57;
		}
		.header {
			background-color: #2e8b57;
			color: #ffffff;
			text-align: center;
			padding: 18px 12px;
		}
		.content {
			padding: 20px 18px;
			font-size: 14px;
		}
		.amount {
			font-size: 22px;
			font-weight: 700;
			color: #2e8b57;
			text-align: center;
			margin: 14px 0;
		}
		.footer {
			font-size: 11px;
			color: #888;
			text-align: center;
			padding: 12px;
		}
	</style>
	</head>
	<body>
	<div class="container">
		<div class="header"><h1>Confirm your share</h1></div>
		<div class="content">
			<p>Hi %s,</p>
			<p>The leader of <strong>%s</strong> has started a new billing round for your shared <strong>%s</strong> subscription. Your share this cycle is:</p>
			<div class="amount">$%s</div>
			<p>Open the app to approve your share. The subscription is only charged once everyone in the group has approved.</p>
		</div>
		<div class="footer">You are receiving this because you are a member of %s.</div>
	</div>
	</body>
	</html>`, firstName, groupName, subscriptionName, amountEach, groupName)

	return SendEmail(to, subject, body)
}

func SendShareReminderEmail(to, firstName, groupName, amountEach string) error {
	subject := fmt.Sprintf("⏰ Reminder: your share for '%s' is waiting on you", groupName)

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html lang="en">
	<head>
	<meta charset="UTF-8">
	<title>Share Reminder</title>
	</head>
	<body style="font-family: 'Segoe UI', Roboto, Arial, sans-serif; color: #333;">
	<div style="max-width: 480px; margin: 25px auto; border-top: 5px solid #d9534f; padding: 20px;">
		<h2>Still waiting on you</h2>
		<p>Hi %s,</p>
		<p>Your group <strong>%s</strong> can't be billed until everyone approves their share. Yours is <strong>$%s</strong>.</p>
		<p>Open the app to approve it — the rest of your group is waiting.</p>
	</div>
	</body>
	</html>`, firstName, groupName, amountEach)

	return SendEmail(to, subject, body)
}
