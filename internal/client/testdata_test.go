package client

import "strings"

// 测试用的 LinkedIn 邮件样本
func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

var confirmationPlain = crlf(`From: LinkedIn <jobs-noreply@linkedin.com>
To: me@example.com
Subject: Jane, your application was sent to Acme
Date: Mon, 15 Jan 2024 10:00:00 +0000
Message-ID: <conf-1@linkedin.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="BOUNDARY"

--BOUNDARY
Content-Type: text/plain; charset=utf-8

Your application was sent to Acme

Software Engineer
Acme · Berlin, Germany (Remote)
Applied on January 15, 2024

View job: https://www.linkedin.com/comm/jobs/view/3812345678/?trackingId=abc
--BOUNDARY
Content-Type: text/html; charset=utf-8

<html><body><p>Your application was sent to Acme</p><a href="https://www.linkedin.com/comm/jobs/view/3812345678/?trk=x">Software Engineer</a></body></html>
--BOUNDARY--
`)

var viewedHTMLOnly = crlf(`From: LinkedIn <jobs-noreply@linkedin.com>
Subject: Your application was viewed by Globex
Date: Tue, 16 Jan 2024 08:30:00 +0000
Message-ID: <viewed-1@linkedin.com>
MIME-Version: 1.0
Content-Type: text/html; charset=utf-8

<html><head><style>p { color: red; }</style></head><body>
<table><tr><td>Your application was viewed by Globex</td></tr>
<tr><td><a href="https://www.linkedin.com/jobs/view/99887766/">Site Reliability Engineer</a></td></tr>
<tr><td>Globex · Springfield</td></tr></table>
</body></html>
`)

var jobAlert = crlf(`From: LinkedIn Job Alerts <jobs-noreply@linkedin.com>
Subject: 30+ new jobs for "engineer"
Date: Wed, 17 Jan 2024 07:00:00 +0000
Message-ID: <alert-1@linkedin.com>
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Here are new jobs that match your preferences.
`)

var sentToGlobex = crlf(`From: LinkedIn <jobs-noreply@linkedin.com>
Subject: Your application was sent to Globex
Date: Mon, 15 Jan 2024 11:00:00 +0000
Message-ID: <conf-2@linkedin.com>
MIME-Version: 1.0
Content-Type: text/plain; charset=utf-8

Your application was sent to Globex

Site Reliability Engineer
Globex · Springfield
Applied on January 15, 2024

View job: https://www.linkedin.com/jobs/view/99887766/
`)
