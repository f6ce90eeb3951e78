package mcpserver

// EntryFormatContract describes the entry fields and date rules that LLM
// consumers should follow when creating or editing entries.
const EntryFormatContract = `# Jera Entry Format Contract

An entry is a dated record shown on the month calendar.

## Fields

| Field       | Required | Notes                                                        |
|-------------|----------|--------------------------------------------------------------|
| title       | yes      | Non-blank after trimming.                                    |
| description | no       | Free text, trimmed.                                          |
| date        | yes      | Local date or date-time, see below.                          |
| reminder    | no       | reminder_amount (> 0) and reminder_unit together.            |

Entries also carry a generated ` + "`id`" + ` and a ` + "`createdAt`" + ` timestamp (UTC). Neither can be set.

## Dates

The calendar day of an entry is the day on the **local clock** of the server's
configured time zone, never the UTC day.

Accepted forms:

- ` + "`2024-03-01`" + `: a whole day
- ` + "`2024-03-01T23:50`" + ` or ` + "`2024-03-01T23:50:00`" + `: local date-time
- ` + "`2024-03-01T23:50:00-08:00`" + `: RFC 3339 with offset, converted to local time

Anything else is rejected. An entry stored with an unparseable date does not
appear on the calendar grid.

## Reminders

Reminder units: ` + "`minutes`" + `, ` + "`hours`" + `, ` + "`days`" + `, ` + "`weeks`" + `.
Reminders are stored and exported as calendar alarms; Jera itself never fires them.

## Editing

Editing changes title, description and date only. The id, createdAt and
reminder of an entry are kept.

## Day keys

Tools that take a ` + "`day`" + ` expect a day key: ` + "`YYYY-MM-DD`" + `, zero padded.
Months passed to ` + "`month_grid`" + ` are 1-12.
`
