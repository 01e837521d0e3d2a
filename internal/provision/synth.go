package provision

import (
	"encoding/json"
	"fmt"
)

// Template — результат синтеза в формате CloudFormation.
// encoding/json сортирует ключи map — вывод детерминирован.
type Template struct {
	FormatVersion string              `json:"AWSTemplateFormatVersion"`
	Description   string              `json:"Description"`
	Resources     map[string]Resource `json:"Resources"`
	Outputs       map[string]Output   `json:"Outputs"`
}

type Resource struct {
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties"`
}

type Output struct {
	Description string `json:"Description,omitempty"`
	Value       any    `json:"Value"`
}

func ref(logicalID string) map[string]any {
	return map[string]any{"Ref": logicalID}
}

func getAtt(logicalID, attr string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{logicalID, attr}}
}

// Synthesize разворачивает граф в шаблон: порядок создания ресурсов
// оркестратор выведет сам из Ref/GetAtt ссылок.
func (d *Descriptor) Synthesize() (*Template, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	in := d.Inputs
	lp := d.logicalPrefix()

	dbID := lp + "Database"
	sgID := lp + "DBSecurityGroup"
	subnetGroupID := lp + "DBSubnetGroup"

	t := &Template{
		FormatVersion: "2010-09-09",
		Description:   fmt.Sprintf("Relational database, proxies and credential secrets for %s", in.Prefix),
		Resources:     map[string]Resource{},
		Outputs:       map[string]Output{},
	}

	// --- Сеть: группа подсетей и ingress только из приватного диапазона ---
	t.Resources[subnetGroupID] = Resource{
		Type: "AWS::RDS::DBSubnetGroup",
		Properties: map[string]any{
			"DBSubnetGroupDescription": "Isolated subnets for " + in.Prefix,
			"SubnetIds":                in.Network.IsolatedSubnetIDs,
		},
	}
	t.Resources[sgID] = Resource{
		Type: "AWS::EC2::SecurityGroup",
		Properties: map[string]any{
			"GroupDescription": "Database access for " + in.Prefix,
			"VpcId":            in.Network.VPCID,
			"SecurityGroupIngress": []map[string]any{{
				"IpProtocol": "tcp",
				"FromPort":   dbPort,
				"ToPort":     dbPort,
				"CidrIp":     in.Network.PrivateCIDR,
			}},
		},
	}

	// --- Инстанс базы. Админские креды — из существующего секрета ---
	adminSecretArn := fmt.Sprintf(
		"{{resolve:secretsmanager:%s:SecretString:username}}", in.AdminSecretName)
	t.Resources[dbID] = Resource{
		Type: "AWS::RDS::DBInstance",
		Properties: map[string]any{
			"DBInstanceIdentifier": in.Prefix + "-db",
			"Engine":               "postgres",
			"EngineVersion":        in.EngineVersion,
			"DBInstanceClass":      in.InstanceClass,
			"AllocatedStorage":     fmt.Sprintf("%d", in.AllocatedStorageGB),
			"Port":                 fmt.Sprintf("%d", dbPort),
			"MasterUsername":       adminSecretArn,
			"MasterUserPassword": fmt.Sprintf(
				"{{resolve:secretsmanager:%s:SecretString:password}}", in.AdminSecretName),
			"DBSubnetGroupName":  ref(subnetGroupID),
			"VPCSecurityGroups":  []any{getAtt(sgID, "GroupId")},
			"PubliclyAccessible": false,
		},
	}

	// --- Создаваемые секреты с placeholder-значениями (ротация — после деплоя) ---
	for _, s := range d.Secrets {
		secretString := fmt.Sprintf(`{"username":"%s","password":"%s"}`, s.Username, PlaceholderPassword)
		t.Resources[lp+s.LogicalID] = Resource{
			Type: "AWS::SecretsManager::Secret",
			Properties: map[string]any{
				"Name":         fmt.Sprintf("%s/%s", in.Prefix, s.Username),
				"Description":  fmt.Sprintf("Credentials for %s (placeholder until rotated)", s.Username),
				"SecretString": secretString,
			},
		}
	}

	// --- Три прокси, каждый со своим секретом и именованной target group ---
	for _, p := range d.Proxies {
		proxyID := lp + p.LogicalID

		var secretRef any
		if p.SecretLogicalID != "" {
			secretRef = ref(lp + p.SecretLogicalID)
		} else {
			// Админский прокси берет существующий секрет по фиксированному имени
			secretRef = in.AdminSecretName
		}

		t.Resources[proxyID] = Resource{
			Type: "AWS::RDS::DBProxy",
			Properties: map[string]any{
				"DBProxyName":  fmt.Sprintf("%s-%s-proxy", in.Prefix, p.Role),
				"EngineFamily": "POSTGRESQL",
				"RequireTLS":   true,
				"Auth": []map[string]any{{
					"AuthScheme": "SECRETS",
					"IAMAuth":    "DISABLED",
					"SecretArn":  secretRef,
				}},
				"VpcSubnetIds": in.Network.IsolatedSubnetIDs,
			},
		}

		// Имя задаем прямо на ресурсе: свой синтез избавляет от обходного
		// поиска вложенной target group по типу
		t.Resources[proxyID+"TargetGroup"] = Resource{
			Type: "AWS::RDS::DBProxyTargetGroup",
			Properties: map[string]any{
				"DBProxyName":           ref(proxyID),
				"TargetGroupName":       p.TargetGroupName,
				"DBInstanceIdentifiers": []any{ref(dbID)},
			},
		}

		t.Outputs[proxyID+"Endpoint"] = Output{
			Description: fmt.Sprintf("Endpoint of the %s proxy", p.Role),
			Value:       getAtt(proxyID, "Endpoint"),
		}
	}

	// --- Ссылки на созданные секреты для соседних стеков ---
	for _, s := range d.Secrets {
		t.Outputs[lp+s.LogicalID+"Ref"] = Output{
			Description: fmt.Sprintf("Secret reference for %s", s.Username),
			Value:       ref(lp + s.LogicalID),
		}
	}

	return t, nil
}

// JSON сериализует шаблон; детерминированность дает сортировка ключей map
func (t *Template) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
