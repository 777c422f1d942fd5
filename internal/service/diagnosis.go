package service

import (
	"fmt"
	"strings"

	"homelab-agent/internal/models"
)

// diagnosisRule - ветка таблицы правил для одного семейства мониторов.
// В командах <host> и <port> заменяются значениями инцидента, если они известны.
type diagnosisRule struct {
	keywords    []string
	causes      []string
	actions     []string
	defaultPort string
}

var (
	webCauses = []string{
		"Веб-сервер недоступен или не отвечает",
		"Проблемы с конфигурацией nginx/apache",
		"Сервис упал или завис",
		"Проблемы с SSL сертификатами",
		"Недостаточно ресурсов (CPU/RAM)",
	}
	webActions = []string{
		"Проверить статус веб-сервера: `systemctl status nginx` или `systemctl status apache2`",
		"Проверить логи: `tail -f /var/log/nginx/error.log`",
		"Проверить доступность порта: `netstat -tlnp | grep :<port>`",
		"Проверить SSL сертификаты: `openssl s_client -connect <host>:443`",
	}
)

// diagnosisRules проверяются по порядку, побеждает первое совпадение
// подстроки в типе монитора. Последнее правило без ключевых слов - общее.
var diagnosisRules = []diagnosisRule{
	{
		keywords:    []string{"https"},
		causes:      webCauses,
		actions:     webActions,
		defaultPort: "443",
	},
	{
		keywords:    []string{"http"},
		causes:      webCauses,
		actions:     webActions,
		defaultPort: "80",
	},
	{
		keywords: []string{"tcp"},
		causes: []string{
			"Порт заблокирован файрволом",
			"Сервис не запущен или упал",
			"Проблемы с сетевыми настройками",
			"Конфликт портов",
		},
		actions: []string{
			"Проверить статус сервиса: `systemctl status <service_name>`",
			"Проверить логи: `journalctl -u <service_name> -f`",
			"Проверить файрвол: `ufw status` или `iptables -L`",
			"Проверить занятость порта: `lsof -i :<port>`",
		},
	},
	{
		keywords: []string{"ping", "icmp"},
		causes: []string{
			"Хост недоступен по сети",
			"Проблемы с сетевым оборудованием",
			"Хост выключен или перезагружается",
			"Блокировка ICMP пакетов",
		},
		actions: []string{
			"Проверить доступность хоста: `ping -c 4 <host>`",
			"Проверить маршрут до хоста: `traceroute <host>`",
			"Проверить сетевые интерфейсы: `ip addr` и `ip route`",
			"Проверить правила ICMP: `iptables -L INPUT -n | grep icmp`",
		},
	},
	{
		keywords: []string{"dns"},
		causes: []string{
			"DNS сервер недоступен",
			"Проблемы с резолвингом домена",
			"Неправильная конфигурация DNS",
		},
		actions: []string{
			"Проверить резолвинг: `dig <host>` или `nslookup <host>`",
			"Проверить настройки резолвера: `cat /etc/resolv.conf`",
			"Проверить локальный DNS сервис: `systemctl status systemd-resolved`",
			"Проверить доступность порта DNS: `ss -tulpn | grep :53`",
		},
	},
	{
		keywords: []string{"docker", "container"},
		causes: []string{
			"Docker контейнер упал",
			"Проблемы с Docker daemon",
			"Недостаточно ресурсов для контейнера",
			"Проблемы с volumes или networks",
		},
		actions: []string{
			"Проверить статус контейнера: `docker ps -a`",
			"Посмотреть логи: `docker logs <container_name>`",
			"Проверить ресурсы: `docker stats <container_name>`",
			"Перезапустить контейнер: `docker restart <container_name>`",
		},
	},
	{
		causes: []string{
			"Сервис недоступен",
			"Проблемы с подключением",
			"Ошибки в конфигурации",
		},
		actions: []string{
			"Проверить статус сервиса: `systemctl status <service_name>`",
			"Проверить логи: `journalctl -u <service_name> -f`",
			"Проверить доступность порта: `netstat -tlnp | grep <port>`",
			"Перезапустить сервис: `systemctl restart <service_name>`",
		},
	},
}

var additionalChecks = []string{
	"Мониторинг ресурсов: `htop`, `iotop`, `df -h`",
	"Сетевые подключения: `ss -tuln`, `netstat -i`",
	"Проверка конфигурации: `nginx -t`, `apache2ctl configtest`",
	"Проверка прав доступа: `ls -la /path/to/service`",
	"Проверка зависимостей: `systemctl list-dependencies <service>`",
}

var automaticActions = []string{
	"Попытка автоматического перезапуска: `systemctl restart <service>`",
	"Проверка через 30 секунд после перезапуска",
	"Уведомление администратора при повторных падениях",
}

// reportTimeLayout - формат времени в текстовых отчетах.
const reportTimeLayout = "2006-01-02 15:04:05"

// ruleFor выбирает ветку таблицы по типу монитора без учета регистра.
func ruleFor(monitorType string) diagnosisRule {
	t := strings.ToLower(monitorType)
	for _, rule := range diagnosisRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule
			}
		}
	}
	return diagnosisRules[len(diagnosisRules)-1]
}

func (r diagnosisRule) render(command string, incident *models.Incident) string {
	host := "localhost"
	if incident.Hostname != nil && *incident.Hostname != "" {
		host = *incident.Hostname
	}
	port := r.defaultPort
	if incident.Port != nil {
		port = fmt.Sprint(*incident.Port)
	}
	if port != "" {
		command = strings.ReplaceAll(command, "<port>", port)
	}
	return strings.ReplaceAll(command, "<host>", host)
}

// failureReport строит полный диагностический отчет для down/error.
func failureReport(incident *models.Incident) string {
	rule := ruleFor(incident.MonitorType)

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **ДЕТАЛЬНЫЙ АНАЛИЗ ИНЦИДЕНТА: %s**\n", incident.MonitorName)
	fmt.Fprintf(&b, "📊 **Статус:** %s\n", incident.Status)
	fmt.Fprintf(&b, "🌐 **URL:** %s\n", incident.URLOrNA())
	fmt.Fprintf(&b, "🖥️ **Тип монитора:** %s\n", incident.MonitorType)
	fmt.Fprintf(&b, "🏠 **Хост:** %s\n", incident.HostOrNA())
	fmt.Fprintf(&b, "🔌 **Порт:** %s\n", incident.PortOrNA())
	fmt.Fprintf(&b, "⏰ **Время инцидента:** %s\n", incident.OccurredAt.Format(reportTimeLayout))
	fmt.Fprintf(&b, "💬 **Сообщение:** %s\n", incident.Message)

	b.WriteString("\n🚨 **ВОЗМОЖНЫЕ ПРИЧИНЫ:**\n")
	for _, cause := range rule.causes {
		fmt.Fprintf(&b, "   • %s\n", cause)
	}

	b.WriteString("\n🔧 **ПРИОРИТЕТНЫЕ ДЕЙСТВИЯ:**\n")
	for i, action := range rule.actions {
		fmt.Fprintf(&b, "   %d. %s\n", i+1, rule.render(action, incident))
	}

	b.WriteString("\n📋 **ДОПОЛНИТЕЛЬНЫЕ ПРОВЕРКИ:**\n")
	for _, check := range additionalChecks {
		fmt.Fprintf(&b, "   • %s\n", check)
	}

	b.WriteString("\n🚀 **АВТОМАТИЧЕСКИЕ ДЕЙСТВИЯ:**\n")
	for _, action := range automaticActions {
		fmt.Fprintf(&b, "   • %s\n", action)
	}

	b.WriteString("\n⚠️ **ПРИМЕЧАНИЕ:** Это детальный анализ на основе правил. Для более точной диагностики используйте LLM агента.")
	return b.String()
}

func restoredReport(incident *models.Incident) string {
	return fmt.Sprintf("🎉 **СЕРВИС ВОССТАНОВЛЕН: %s**\n\n✅ Сервис снова доступен и работает корректно.\n⏰ Время восстановления: %s",
		incident.MonitorName, incident.OccurredAt.Format(reportTimeLayout))
}

func statusChangeReport(incident *models.Incident) string {
	return fmt.Sprintf("ℹ️ **ИЗМЕНЕНИЕ СТАТУСА: %s**\n\n📊 Новый статус: %s\n⏰ Время: %s",
		incident.MonitorName, incident.Status, incident.OccurredAt.Format(reportTimeLayout))
}
