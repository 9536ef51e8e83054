// Package ui renders a popup session as an interactive terminal interface using bubbletea's Elm architecture.
//
// The [Model] lists the derived tab view of a [popup.Session], one entry per visible music tab
// ordered by site name then tab id. A header shows aggregation progress until every expected
// reply has been counted. Store changes arrive on a watch channel and are turned into messages,
// so the list refreshes whenever a reply or push lands.
//
// Keys act on the selected tab: transport commands (space, n, b, m, l, d), default tab (*),
// streamkeys enablement (e), settings panel (s) and focusing the tab in the browser (o).
// Commands whose capability the tab reported as false are not sent.
package ui
