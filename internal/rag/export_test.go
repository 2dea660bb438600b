package rag

// HistoryWindow exposes historyWindow to external tests.
const HistoryWindow = historyWindow
