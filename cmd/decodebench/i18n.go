// Package main provides localization for the decodebench CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Exercise hardware-style video decoders through their full lifecycle.": "ハードウェア型ビデオデコーダをライフサイクル全体にわたって検証します。",

		// Run command
		"Run the decode benchmark against one or more streams.": "1つ以上のストリームに対してデコードベンチマークを実行",
		"Running %d instance(s) over %d stream(s)...":           "%d個のインスタンスで%d本のストリームを実行中...",
		"Frame delivery logs written to %s":                     "フレーム配信ログを%sに書き込みました",
		"Summary written to %s":                                 "サマリーを%sに書き込みました",
		"run failed its pass criteria: %w":                      "実行が合格基準を満たしませんでした: %w",
		"Thumbnail page matched the golden hashes":              "サムネイルページは既知のハッシュと一致しました",
		"All %d instance(s) passed":                             "%d個のインスタンスすべてが合格しました",
		"Failed to save page dump: %v":                          "ページダンプの保存に失敗しました: %v",
		"Thumbnail hash mismatch, page saved to %s":             "サムネイルのハッシュが一致しません。ページを%sに保存しました",

		// Version command
		"Show version information":      "バージョン情報を表示",
		"decodebench (Go) version %s":   "decodebench (Go版) バージョン %s",
	})
}
