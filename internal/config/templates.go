// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package config

const defaultTitle = "{% if action == '新入库' and media_type == '电影' %}🎬 " +
	"{% elif action == '新入库' and media_type == '剧集' %}📺 " +
	"{% elif action == '新入库' and media_type == '有声书' %}📚 " +
	"{% elif action == '新入库' %}🆕 " +
	"{% elif action == '测试' %}🧪 " +
	"{% elif action == '开始播放' %}▶️ " +
	"{% elif action == '停止播放' %}⏹️ " +
	"{% elif action == '登录成功' %}✅ " +
	"{% elif action == '登录失败' %}❌ " +
	"{% elif action == '标记了' %}🏷️ " +
	"{% endif %}" +
	"{% if user_name %}【{{ user_name }}】{% endif %}" +
	"{{ action }}{% if media_type %} {{media_type}} {% endif %}{{ item_name }}"

const defaultText = "{% if vote_average %}⭐ 评分：{{ vote_average }}/10\n{% endif %}" +
	"📚 类型：{{ media_type }}\n" +
	"{% if percentage %}🔄 进度：{{ percentage }}%\n{% endif %}" +
	"{% if ip_address %}🌐 IP地址：{{ ip_address }}\n{% endif %}" +
	"{% if device_name %}📱 设备：{{ client }} {{ device_name }}\n{% endif %}" +
	"{% if total_size %}💾 大小：{{ total_size }}\n{% endif %}" +
	"{% if tmdbid %}🎬 TMDB ID：{{ tmdbid }}\n{% endif %}" +
	"{% if imdbid %}🎞️  IMDB ID：{{ imdbid }}\n{% endif %}" +
	"🕒 时间：{{ now_time }}\n" +
	"{% if overview %}\n📝 剧情：{{ overview }}{% endif %}"

// DefaultTemplate is used for every family when the config file defines no
// "default" template.
func DefaultTemplate() TemplateConfig {
	return TemplateConfig{Title: defaultTitle, Text: defaultText}
}
